package ecpay

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// FieldCheckMacValue 签名字段名
const FieldCheckMacValue = "CheckMacValue"

// HashMethod 签名哈希算法，金流使用SHA256，物流使用MD5
type HashMethod int

const (
	HashSHA256 HashMethod = iota
	HashMD5
)

func (m HashMethod) String() string {
	if m == HashMD5 {
		return "md5"
	}
	return "sha256"
}

// Params 参与签名的参数，不在map中的键视为未定义
type Params map[string]string

// Config 商店凭证
type Config struct {
	MerchantID string
	HashKey    string
	HashIV     string
}

// Signer 计算与验证CheckMacValue
type Signer struct {
	hashKey string
	hashIV  string
}

// NewSigner 创建签名器
func NewSigner(cfg Config) *Signer {
	return &Signer{hashKey: cfg.HashKey, hashIV: cfg.HashIV}
}

// CheckMacValue 计算参数的签名
func (s *Signer) CheckMacValue(params Params, method HashMethod) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	raw := "HashKey=" + s.hashKey + "&" + strings.Join(pairs, "&") + "&HashIV=" + s.hashIV

	encoded := []byte(strings.ToLower(EncodeForMac(raw)))

	var digest []byte
	switch method {
	case HashMD5:
		sum := md5.Sum(encoded)
		digest = sum[:]
	default:
		sum := sha256.Sum256(encoded)
		digest = sum[:]
	}
	return strings.ToUpper(hex.EncodeToString(digest))
}

// Sign 返回带CheckMacValue的参数副本
func (s *Signer) Sign(params Params, method HashMethod) Params {
	signed := make(Params, len(params)+1)
	for k, v := range params {
		if k != FieldCheckMacValue {
			signed[k] = v
		}
	}
	signed[FieldCheckMacValue] = s.CheckMacValue(signed, method)
	return signed
}

// Verify 用其余字段重新计算签名并与CheckMacValue比较
func (s *Signer) Verify(params Params, method HashMethod) bool {
	received, ok := params[FieldCheckMacValue]
	if !ok || received == "" {
		return false
	}
	rest := make(Params, len(params))
	for k, v := range params {
		if k != FieldCheckMacValue {
			rest[k] = v
		}
	}
	return s.CheckMacValue(rest, method) == received
}

// EncodeForMac 按绿界规则编码：字母数字与 -_.!*() 保留，空格转为+，其余字节百分号编码
func EncodeForMac(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
			b.WriteByte(c)
		case c == '-', c == '_', c == '.', c == '!', c == '*', c == '(', c == ')':
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('+')
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// ParamsFromForm 取表单中每个键的第一个值
func ParamsFromForm(form url.Values) Params {
	params := make(Params, len(form))
	for k, v := range form {
		if len(v) > 0 {
			params[k] = v[0]
		} else {
			params[k] = ""
		}
	}
	return params
}

// Form 转换为可提交的表单
func (p Params) Form() url.Values {
	form := make(url.Values, len(p))
	for k, v := range p {
		form.Set(k, v)
	}
	return form
}
