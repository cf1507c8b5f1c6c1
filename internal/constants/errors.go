package constants

// 通用错误消息
const (
	// 认证相关错误
	ErrUnauthorized           = "尚未登入"
	ErrInvalidToken           = "登入狀態已失效，請重新登入"
	ErrInsufficientPermission = "權限不足"

	// 用户相关错误
	ErrInvalidEmail         = "請輸入正確的 Email"
	ErrEmailRegistered      = "此 Email 已完成註冊"
	ErrPasswordTooShort     = "密碼至少需要 6 個字元"
	ErrCodeFormat           = "請輸入 6 位數驗證碼"
	ErrCodeMissing          = "請先取得驗證碼"
	ErrCodeUsed             = "驗證碼已使用，請重新取得"
	ErrCodeExpired          = "驗證碼已過期"
	ErrCodeIncorrect        = "驗證碼錯誤"
	ErrLoginFormat          = "Email 或密碼格式不正確"
	ErrAccountNotVerified   = "帳號不存在或未驗證"
	ErrPasswordIncorrect    = "Email 或密碼錯誤"
	ErrOperationTooFrequent = "請求過於頻繁，請稍後再試"

	// 参数相关错误
	ErrInvalidParams  = "參數錯誤"
	ErrInvalidRequest = "無效的請求格式"

	// 购物车
	ErrCartItemInvalid   = "請提供正確的商品與數量"
	ErrProductNotFound   = "商品不存在"
	ErrProductIDInvalid  = "商品編號不正確"
	ErrCartEmpty         = "購物車目前沒有商品"
	ErrCartItemNotFound  = "購物車中找不到此商品"
	SuccessCartItemAdded = "商品已加入購物車"
	SuccessCartItemGone  = "商品已從購物車移除"

	// 结账与订单
	ErrTradeNoOrAmount    = "缺少交易編號或金額"
	ErrTradeNoFormat      = "交易編號需為 20 字元以內的英數字"
	ErrTradeNoTaken       = "交易編號已被使用"
	ErrOrderItemsMissing  = "缺少訂單明細"
	ErrItemsMissing       = "缺少商品資料"
	ErrShippingMissing    = "缺少配送方式"
	ErrAddressIncomplete  = "宅配地址不完整"
	ErrStoreNotSelected   = "尚未選擇門市"
	ErrShopifyNoOrder     = "Shopify 未回傳訂單資訊"
	ErrShopifyNotSet      = "Shopify Admin API 未設定"
	ErrStorefrontNotSet   = "Shopify Storefront API 未設定"
	ErrNoValidVariant     = "缺少有效的商品變體"
	ErrNoCheckoutURL      = "Shopify 未回傳 checkout URL"
	ErrECPayNotConfigured = "ECPay 環境變數未設定"

	// 物流
	ErrSelectionTokenMissing = "缺少 selection token"
	ErrSelectionNotFound     = "尚未收到門市資訊"
	ErrTransactionNotFound   = "找不到交易"
	ErrNotPickupOrder        = "此交易不是超商取貨訂單"

	// 系统错误
	ErrInternalServer = "伺服器內部錯誤"
	ErrUpstream       = "外部服務錯誤"
)

// 成功消息
const (
	SuccessCodeSent = "驗證碼已寄出"
	SuccessRegister = "註冊成功"
	SuccessLogout   = "已登出"
)
