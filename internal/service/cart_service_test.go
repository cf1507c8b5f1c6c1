package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plgshop/internal/constants"
	"plgshop/internal/model"
	"plgshop/internal/repository"
)

type fakeCartRepo struct {
	items     map[int64]int
	setErr    error
	removeErr error
}

func (f *fakeCartRepo) SetItem(_ context.Context, _, productID int64, qty int) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.items[productID] = qty
	return nil
}

func (f *fakeCartRepo) ListItems(context.Context, int64) ([]model.CartItem, error) {
	out := []model.CartItem{}
	for id, qty := range f.items {
		out = append(out, model.CartItem{ProductID: id, Quantity: qty, Name: "PLG"})
	}
	return out, nil
}

func (f *fakeCartRepo) CountItems(context.Context, int64) (int, error) { return len(f.items), nil }

func (f *fakeCartRepo) RemoveItem(_ context.Context, _, productID int64) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.items, productID)
	return nil
}

func TestCartService(t *testing.T) {
	repo := &fakeCartRepo{items: map[int64]int{}}
	svc := NewCartService(repo)
	ctx := context.Background()

	items, err := svc.SetItem(ctx, 1, 7, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	_, err = svc.SetItem(ctx, 1, 7, 0)
	assert.EqualError(t, err, constants.ErrCartItemInvalid)

	repo.setErr = repository.ErrNotFound
	_, err = svc.SetItem(ctx, 1, 99, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, constants.ErrProductNotFound)

	repo.removeErr = repository.ErrCartEmpty
	_, err = svc.RemoveItem(ctx, 1, 7)
	assert.EqualError(t, err, constants.ErrCartEmpty)

	repo.removeErr = repository.ErrNotFound
	_, err = svc.RemoveItem(ctx, 1, 7)
	assert.EqualError(t, err, constants.ErrCartItemNotFound)

	repo.removeErr = errors.New("db")
	_, err = svc.RemoveItem(ctx, 1, 7)
	assert.NotErrorIs(t, err, ErrNotFound)

	repo.removeErr = nil
	items, err = svc.RemoveItem(ctx, 1, 7)
	require.NoError(t, err)
	assert.Empty(t, items)
}
