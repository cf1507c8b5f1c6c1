package ecpay

import "time"

// 台湾不实行夏令时，固定UTC+8
var taipei = time.FixedZone("Asia/Taipei", 8*60*60)

// TradeDateLayout MerchantTradeDate格式 yyyy/MM/dd HH:mm:ss
const TradeDateLayout = "2006/01/02 15:04:05"

// FormatTradeDate 以台湾时间格式化交易时间
func FormatTradeDate(t time.Time) string {
	return t.In(taipei).Format(TradeDateLayout)
}
