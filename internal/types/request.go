package types

// SendEmailCodeRequest 发送验证码请求
type SendEmailCodeRequest struct {
	Email string `json:"email"`
}

// RegisterEmailRequest 邮箱注册请求
type RegisterEmailRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	VerificationCode string `json:"verificationCode"`
}

// LoginEmailRequest 邮箱登录请求
type LoginEmailRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CartItemRequest 加入购物车请求，数字或字符串都接受
type CartItemRequest struct {
	ProductID any `json:"productId"`
	Quantity  any `json:"quantity"`
}

// MapTokenRequest 电子地图选店请求
type MapTokenRequest struct {
	LogisticsSubType string `json:"logisticsSubType"`
	ExtraData        string `json:"extraData"`
}

// ShippingOrderRequest 手动建立物流单请求
type ShippingOrderRequest struct {
	TradeNo string `json:"tradeNo" binding:"required"`
}
