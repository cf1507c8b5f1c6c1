package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/rand"

	"plgshop/internal/constants"
	"plgshop/internal/model"
	"plgshop/internal/repository"
	"plgshop/pkg/ecpay"
	"plgshop/pkg/logger"
)

// LogisticsGateway 绿界物流接口
type LogisticsGateway interface {
	MapForm(subType, extraData, replyURL string) (string, ecpay.Params)
	RedirectToSelection(ctx context.Context, data any) (*ecpay.SelectionResult, error)
	Signer() *ecpay.Signer
}

// LogisticsConfig 物流相关地址与寄件人
type LogisticsConfig struct {
	ServerBaseURL string
	ClientOrigin  string
	SenderName    string
	SenderZipCode string
	SenderAddress string
}

// SelectionRequest v2门市选择请求，未传的字段使用默认值
type SelectionRequest struct {
	SelectionToken           string  `json:"selectionToken"`
	ExtraData                string  `json:"extraData"`
	TempLogisticsID          *string `json:"tempLogisticsId"`
	GoodsAmount              *int64  `json:"goodsAmount"`
	IsCollection             *string `json:"isCollection"`
	GoodsName                *string `json:"goodsName"`
	SenderName               *string `json:"senderName"`
	SenderZipCode            *string `json:"senderZipCode"`
	SenderAddress            *string `json:"senderAddress"`
	Remark                   *string `json:"remark"`
	ServerReplyURL           *string `json:"serverReplyUrl"`
	ClientReplyURL           *string `json:"clientReplyUrl"`
	Temperature              *string `json:"temperature"`
	Specification            *string `json:"specification"`
	ScheduledPickupTime      *string `json:"scheduledPickupTime"`
	ReceiverAddress          *string `json:"receiverAddress"`
	ReceiverCellPhone        *string `json:"receiverCellPhone"`
	ReceiverPhone            *string `json:"receiverPhone"`
	ReceiverName             *string `json:"receiverName"`
	EnableSelectDeliveryTime *string `json:"enableSelectDeliveryTime"`
	EshopMemberID            *string `json:"eshopMemberId"`
}

// SelectionData 加密后送往绿界的内容
type SelectionData struct {
	TempLogisticsID          string
	GoodsAmount              int64
	IsCollection             string
	GoodsName                string
	SenderName               string
	SenderZipCode            string
	SenderAddress            string
	Remark                   string
	ServerReplyURL           string
	ClientReplyURL           string
	Temperature              string
	Specification            string
	ScheduledPickupTime      string
	ReceiverAddress          string
	ReceiverCellPhone        string
	ReceiverPhone            string
	ReceiverName             string
	EnableSelectDeliveryTime string
	EshopMemberID            string
	ExtraData                string
}

// SelectionReply 门市选择接口的结果
type SelectionReply struct {
	SelectionToken string
	HTML           string
	Fields         map[string]any
}

// LogisticsService 超商门市选择与物流状态
type LogisticsService struct {
	gateway      LogisticsGateway
	selections   repository.StoreSelectionRepository
	transactions repository.TransactionRepository
	fulfillment  *FulfillmentService
	cfg          LogisticsConfig
	logger       *logger.Logger
	now          func() time.Time
}

// NewLogisticsService 创建物流服务
func NewLogisticsService(
	gateway LogisticsGateway,
	selections repository.StoreSelectionRepository,
	transactions repository.TransactionRepository,
	fulfillment *FulfillmentService,
	cfg LogisticsConfig,
	log *logger.Logger,
) *LogisticsService {
	return &LogisticsService{
		gateway:      gateway,
		selections:   selections,
		transactions: transactions,
		fulfillment:  fulfillment,
		cfg:          cfg,
		logger:       log,
		now:          time.Now,
	}
}

// MapForm 电子地图选店表单
func (s *LogisticsService) MapForm(subType, extraData string) *CheckoutForm {
	action, fields := s.gateway.MapForm(subType, extraData, s.cfg.ServerBaseURL+"/api/logistics/map-callback")
	return &CheckoutForm{Action: action, Fields: fields}
}

// StoreCallbackURL 前端门市回传页面，附带绿界回传的参数
func (s *LogisticsService) StoreCallbackURL(form url.Values) string {
	params := url.Values{}
	for k, v := range form {
		if len(v) > 0 {
			params.Set(k, v[0])
		}
	}
	target := s.cfg.ClientOrigin + "/payment/store-callback"
	if encoded := params.Encode(); encoded != "" {
		target += "?" + encoded
	}
	return target
}

// SelectionRedirectURL 门市选择完成后跳转的前端地址
func (s *LogisticsService) SelectionRedirectURL(token string) string {
	target := s.cfg.ClientOrigin + "/payment/store-callback"
	if token != "" {
		target += "?" + url.Values{"token": {token}}.Encode()
	}
	return target
}

// HandleStatusCallback 验签后更新物流状态
func (s *LogisticsService) HandleStatusCallback(ctx context.Context, params ecpay.Params) error {
	if !s.gateway.Signer().Verify(params, ecpay.HashMD5) {
		s.logger.Warn("物流状态通知签名不符", "logistics_id", params["AllPayLogisticsID"])
		return ErrSignatureMismatch
	}
	logisticsID := params["AllPayLogisticsID"]
	if logisticsID == "" {
		return NewValidationError("missing AllPayLogisticsID")
	}
	found, err := s.transactions.UpdateLogisticsStatus(ctx, logisticsID, params["RtnCode"], params["RtnMsg"])
	if err != nil {
		return fmt.Errorf("update logistics status: %w", err)
	}
	if !found {
		s.logger.Warn("物流状态通知找不到交易", "logistics_id", logisticsID)
	}
	return nil
}

// BuildSelectionData 补齐默认值
func (s *LogisticsService) BuildSelectionData(req SelectionRequest, token string) SelectionData {
	goodsAmount := int64(500)
	if req.GoodsAmount != nil {
		goodsAmount = *req.GoodsAmount
	}
	return SelectionData{
		TempLogisticsID:          or(req.TempLogisticsID, "0"),
		GoodsAmount:              goodsAmount,
		IsCollection:             or(req.IsCollection, "N"),
		GoodsName:                or(req.GoodsName, "PLG 經典款"),
		SenderName:               or(req.SenderName, s.cfg.SenderName),
		SenderZipCode:            or(req.SenderZipCode, s.cfg.SenderZipCode),
		SenderAddress:            or(req.SenderAddress, s.cfg.SenderAddress),
		Remark:                   or(req.Remark, ""),
		ServerReplyURL:           or(req.ServerReplyURL, s.cfg.ServerBaseURL+"/api/logistics-new/selection-callback"),
		ClientReplyURL:           or(req.ClientReplyURL, s.cfg.ClientOrigin+"/api/logistics/client-callback"),
		Temperature:              or(req.Temperature, "0001"),
		Specification:            or(req.Specification, "0001"),
		ScheduledPickupTime:      or(req.ScheduledPickupTime, "4"),
		ReceiverAddress:          or(req.ReceiverAddress, ""),
		ReceiverCellPhone:        or(req.ReceiverCellPhone, ""),
		ReceiverPhone:            or(req.ReceiverPhone, ""),
		ReceiverName:             or(req.ReceiverName, "PLG收件"),
		EnableSelectDeliveryTime: or(req.EnableSelectDeliveryTime, "Y"),
		EshopMemberID:            or(req.EshopMemberID, ""),
		ExtraData:                token,
	}
}

// StartSelection 调用v2门市选择接口
func (s *LogisticsService) StartSelection(ctx context.Context, req SelectionRequest) (*SelectionReply, error) {
	token := req.SelectionToken
	if token == "" {
		token = req.ExtraData
	}
	if token == "" {
		token = "SEL" + strings.ToUpper(rand.String(12))
	}

	result, err := s.gateway.RedirectToSelection(ctx, s.BuildSelectionData(req, token))
	if err != nil && result == nil {
		return nil, downstream("ecpay-logistics", err)
	}
	if err != nil {
		s.logger.Warn("门市选择回应解密失败", "token", token, "error", err)
	}

	reply := &SelectionReply{SelectionToken: token, Fields: map[string]any{}}
	switch r := result.Response.(type) {
	case *ecpay.UnexpectedResponse:
		if strings.Contains(strings.ToLower(r.Raw), "<html") {
			reply.HTML = r.Raw
			return reply, nil
		}
		return nil, downstream("ecpay-logistics", r)
	case *ecpay.ProtocolError:
		return nil, downstream("ecpay-logistics", r)
	case *ecpay.Success:
		if r.JSON != nil {
			for k, v := range r.JSON {
				reply.Fields[k] = v
			}
		} else {
			for k, v := range r.Fields {
				reply.Fields[k] = v
			}
		}
		if result.Decrypted != "" {
			reply.Fields["Data"] = result.Decrypted
		}
		if result.Parsed != nil {
			reply.Fields["ParsedData"] = result.Parsed
		}
	}
	return reply, nil
}

var storeKeys = struct {
	id, name, address, phone, subType []string
}{
	id:      []string{"ReceiverStoreID", "CVSStoreID", "StoreID", "storeid", "storeId"},
	name:    []string{"ReceiverStoreName", "CVSStoreName", "StoreName", "storename", "storeName"},
	address: []string{"ReceiverAddress", "CVSAddress", "storeaddress", "storeAddress"},
	phone:   []string{"ReceiverPhone", "phone", "CVSTelephone"},
	subType: []string{"LogisticsSubType", "logisticsSubType", "SubType"},
}

// NormalizeStore 从各种回传字段名中取出门市信息
func NormalizeStore(form url.Values) *model.StoreSelection {
	raw := make(map[string]string, len(form))
	for k := range form {
		raw[k] = form.Get(k)
	}
	token := firstOf(form, "ExtraData", "extraData")
	return &model.StoreSelection{
		Token:            token,
		StoreID:          firstOf(form, storeKeys.id...),
		StoreName:        firstOf(form, storeKeys.name...),
		StoreAddress:     firstOf(form, storeKeys.address...),
		StorePhone:       firstOf(form, storeKeys.phone...),
		LogisticsSubType: firstOf(form, storeKeys.subType...),
		TempLogisticsID:  form.Get("TempLogisticsID"),
		Raw:              raw,
	}
}

// SaveSelection 保存门市选择结果，缺token或门市编号时忽略
func (s *LogisticsService) SaveSelection(ctx context.Context, form url.Values) error {
	sel := NormalizeStore(form)
	if sel.Token == "" || sel.StoreID == "" {
		s.logger.Debug("门市回传缺少token或门市编号", "token", sel.Token)
		return nil
	}
	sel.SavedAt = s.now()
	if err := s.selections.Save(ctx, sel); err != nil {
		return fmt.Errorf("save store selection: %w", err)
	}
	s.logger.Info("门市选择已保存", "token", sel.Token, "store_id", sel.StoreID)
	return nil
}

// SelectionResult 读取门市选择结果
func (s *LogisticsService) SelectionResult(ctx context.Context, token string) (*model.StoreSelection, error) {
	if token == "" {
		return nil, NewValidationError(constants.ErrSelectionTokenMissing)
	}
	sel, err := s.selections.Get(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, statusError(ErrNotFound, constants.ErrSelectionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load store selection: %w", err)
	}
	return sel, nil
}

// ShipTransaction 为指定交易手动建立物流单
func (s *LogisticsService) ShipTransaction(ctx context.Context, tradeNo string) (*model.LogisticsShipment, error) {
	tx, err := s.transactions.GetByTradeNo(ctx, tradeNo)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, statusError(ErrNotFound, constants.ErrTransactionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	shipment, err := s.fulfillment.CreateShipment(ctx, tx)
	if errors.Is(err, ErrNotPickup) {
		return nil, NewValidationError(constants.ErrNotPickupOrder)
	}
	return shipment, err
}

func firstOf(form url.Values, keys ...string) string {
	for _, k := range keys {
		if _, ok := form[k]; ok {
			return form.Get(k)
		}
	}
	return ""
}

func or(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
