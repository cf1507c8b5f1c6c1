package ecpay

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrInvalidKeyLength = errors.New("HashKey/HashIV 长度不符 AES 要求")
	ErrInvalidPadding   = errors.New("invalid PKCS7 padding")
)

// Cipher 物流v2接口的Data字段加解密：URL编码后AES-CBC(PKCS7)再Base64
type Cipher struct {
	block cipher.Block
	iv    []byte
}

// NewCipher 根据HashKey长度选择AES-128/192/256
func NewCipher(cfg Config) (*Cipher, error) {
	key := []byte(cfg.HashKey)
	iv := []byte(cfg.HashIV)
	if len(iv) != aes.BlockSize {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyLength, err)
	}
	return &Cipher{block: block, iv: iv}, nil
}

// Encrypt 加密明文（通常是JSON）
func (c *Cipher) Encrypt(plain string) string {
	data := pkcs7Pad([]byte(EncodeURIComponent(plain)), aes.BlockSize)
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, data)
	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt 解密Base64密文并还原URL编码
func (c *Cipher) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64解码失败: %w", err)
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", ErrInvalidPadding
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, data)
	out, err = pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	plain, err := url.QueryUnescape(string(out))
	if err != nil {
		return "", fmt.Errorf("URL解码失败: %w", err)
	}
	return plain, nil
}

// EncodeURIComponent 与浏览器encodeURIComponent一致的编码
func EncodeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
			b.WriteByte(c)
		case strings.IndexByte("-_.!~*'()", c) >= 0:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func pkcs7Pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, size int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}
