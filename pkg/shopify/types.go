package shopify

// LineItemInput 建单时的商品行
type LineItemInput struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	SKU      string `json:"sku,omitempty"`
}

// Address 收件地址
type Address struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Address1  string `json:"address1,omitempty"`
	Phone     string `json:"phone,omitempty"`
	City      string `json:"city,omitempty"`
	Province  string `json:"province,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Country   string `json:"country,omitempty"`
}

// NoteAttribute 订单附加属性
type NoteAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TransactionInput 建单时附带的付款记录
type TransactionInput struct {
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Gateway       string `json:"gateway,omitempty"`
	Authorization string `json:"authorization,omitempty"`
}

// OrderInput POST /orders.json 的 order 对象
type OrderInput struct {
	LineItems         []LineItemInput    `json:"line_items"`
	FinancialStatus   string             `json:"financial_status"`
	FulfillmentStatus string             `json:"fulfillment_status,omitempty"`
	Tags              string             `json:"tags,omitempty"`
	ShippingAddress   *Address           `json:"shipping_address,omitempty"`
	Note              string             `json:"note,omitempty"`
	NoteAttributes    []NoteAttribute    `json:"note_attributes"`
	Transactions      []TransactionInput `json:"transactions,omitempty"`
}

// LineItem 订单商品行
type LineItem struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	SKU      string `json:"sku"`
}

// Order Shopify订单，同时用于Webhook载荷
type Order struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	OrderNumber       int64      `json:"order_number"`
	Currency          string     `json:"currency"`
	SubtotalPrice     string     `json:"subtotal_price"`
	TotalPrice        string     `json:"total_price"`
	FinancialStatus   string     `json:"financial_status"`
	FulfillmentStatus string     `json:"fulfillment_status"`
	Tags              string     `json:"tags"`
	LineItems         []LineItem `json:"line_items"`
}

// Variant 商品规格
type Variant struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	SKU   string `json:"sku"`
}

// Product 商品
type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Variants []Variant `json:"variants"`
}
