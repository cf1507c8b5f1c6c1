package ecpay

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Response 绿界接口回应，具体类型为 Success、ProtocolError 或 UnexpectedResponse
type Response interface {
	isResponse()
}

// Success 成功回应。管道格式 "1|k=v&..." 解析到 Fields，JSON格式同时保留原始内容
type Success struct {
	Fields map[string]string
	JSON   map[string]any
}

// ProtocolError 绿界按协议返回的错误码与讯息
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ecpay error %s: %s", e.Code, e.Message)
}

// UnexpectedResponse 无法识别的回应，例如HTML错误页
type UnexpectedResponse struct {
	StatusCode int
	Raw        string
}

func (e *UnexpectedResponse) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return fmt.Sprintf("unexpected ecpay response (status %d): %s", e.StatusCode, raw)
}

func (*Success) isResponse()            {}
func (*ProtocolError) isResponse()      {}
func (*UnexpectedResponse) isResponse() {}

// ParseResponse 根据内容形态判定回应类型
func ParseResponse(statusCode int, body []byte) Response {
	raw := string(body)
	trimmed := strings.TrimSpace(raw)

	switch {
	case trimmed == "":
		return &UnexpectedResponse{StatusCode: statusCode, Raw: raw}
	case looksLikeHTML(trimmed):
		return &UnexpectedResponse{StatusCode: statusCode, Raw: raw}
	case trimmed[0] == '{':
		return parseJSON(statusCode, trimmed)
	}

	if code, rest, ok := splitPipe(trimmed); ok {
		if code == "1" {
			return &Success{Fields: parseKV(rest)}
		}
		return &ProtocolError{Code: code, Message: rest}
	}
	return &UnexpectedResponse{StatusCode: statusCode, Raw: raw}
}

// Field 读取成功回应中的字段
func (s *Success) Field(key string) string {
	if s == nil || s.Fields == nil {
		return ""
	}
	return s.Fields[key]
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html") || strings.Contains(lower, "<html")
}

// splitPipe 拆分 "code|message"，code必须为数字
func splitPipe(s string) (string, string, bool) {
	code, rest, found := strings.Cut(s, "|")
	if !found || code == "" {
		return "", "", false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return "", "", false
		}
	}
	return code, rest, true
}

func parseKV(s string) map[string]string {
	fields := make(map[string]string)
	if !strings.Contains(s, "=") {
		if s != "" {
			fields["Message"] = s
		}
		return fields
	}
	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		fields[k] = v
	}
	return fields
}

// parseJSON 处理JSON回应，TransCode/RtnCode 不为1视为协议错误
func parseJSON(statusCode int, s string) Response {
	var doc map[string]any
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return &UnexpectedResponse{StatusCode: statusCode, Raw: s}
	}

	fields := make(map[string]string, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case nil:
			fields[k] = ""
		default:
			b, _ := json.Marshal(val)
			fields[k] = string(b)
		}
	}

	for _, key := range []string{"TransCode", "RtnCode"} {
		code, ok := fields[key]
		if !ok {
			continue
		}
		if code != "1" {
			msg := fields["TransMsg"]
			if key == "RtnCode" {
				msg = fields["RtnMsg"]
			}
			return &ProtocolError{Code: code, Message: msg}
		}
		break
	}
	return &Success{Fields: fields, JSON: doc}
}
