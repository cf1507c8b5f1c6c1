package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用程序配置
type Config struct {
	APIPort       int
	LogLevel      string
	Env           string
	ServerBaseURL string
	ClientOrigin  string
	AdminEmails   []string
	LogFile       LogFileConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Email         EmailConfig
	ECPay         ECPayConfig
	Shopify       ShopifyConfig
	Auth          AuthConfig
	Google        GoogleConfig
	Reconcile     ReconcileConfig
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Enabled    bool
	Path       string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // 天
	Compress   bool
}

// DatabaseConfig MySQL数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

// EmailConfig 邮件配置
type EmailConfig struct {
	Host     string // SMTP服务器地址
	Port     int    // SMTP服务器端口
	Username string // 邮箱账号
	Password string // 邮箱密码
	From     string // 发件人
	FromName string // 发件人名称
	UseTLS   bool   // 465端口直接TLS
}

// ECPayConfig 绿界金流与物流配置
type ECPayConfig struct {
	MerchantID     string
	HashKey        string
	HashIV         string
	PaymentURL     string
	ClientBackURL  string
	PlatformID     string
	MapURL         string
	CreateURL      string // Express/Create
	SelectionURL   string // Express/v2/RedirectToLogisticsSelection
	Logistics      ECPayCredentials
	SenderName     string
	SenderPhone    string
	SenderZipCode  string
	SenderAddress  string
	RequestTimeout time.Duration
}

// ECPayCredentials 物流使用的商店凭证，未设置时沿用金流凭证
type ECPayCredentials struct {
	MerchantID string
	HashKey    string
	HashIV     string
}

// ShopifyConfig Shopify配置
type ShopifyConfig struct {
	StoreDomain       string
	AccessToken       string
	APIVersion        string
	StorefrontToken   string
	StorefrontVersion string
	WebhookSecret     string
	Timeout           time.Duration
}

// AuthConfig 登录凭证配置
type AuthConfig struct {
	JWTSecret    string
	CookieName   string
	TokenTTL     time.Duration
	SecureCookie bool
}

// GoogleConfig Google OAuth配置
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// ReconcileConfig 对账任务配置
type ReconcileConfig struct {
	Interval   time.Duration
	ClaimLease time.Duration
	BatchSize  int
}

// IsProduction 是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Configured 金流凭证是否齐全
func (c ECPayConfig) Configured() bool {
	return c.MerchantID != "" && c.HashKey != "" && c.HashIV != ""
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 加载.env文件，文件不存在时直接使用环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	env := getEnv("APP_ENV", "development")
	production := env == "production"

	serverBaseURL := strings.TrimRight(getEnv("SERVER_BASE_URL", getEnv("BASE_URL", "http://localhost:3001")), "/")
	clientOrigin := strings.TrimRight(getEnv("CLIENT_ORIGIN", "http://localhost:3000"), "/")

	// 物流网址随环境切换
	logisticsHost := "https://logistics-stage.ecpay.com.tw"
	paymentURL := "https://payment-stage.ecpay.com.tw/Cashier/AioCheckOut/V5"
	if production {
		logisticsHost = "https://logistics.ecpay.com.tw"
		paymentURL = "https://payment.ecpay.com.tw/Cashier/AioCheckOut/V5"
	}

	merchantID := os.Getenv("ECPAY_MERCHANT_ID")
	hashKey := os.Getenv("ECPAY_HASH_KEY")
	hashIV := os.Getenv("ECPAY_HASH_IV")

	cfg := &Config{
		APIPort:       getEnvInt("API_PORT", getEnvInt("PORT", 3001)),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		Env:           env,
		ServerBaseURL: serverBaseURL,
		ClientOrigin:  clientOrigin,
		AdminEmails:   splitList(os.Getenv("ADMIN_EMAILS")),
		LogFile: LogFileConfig{
			Enabled:    getEnvBool("LOG_FILE_ENABLED", false),
			Path:       getEnv("LOG_FILE_PATH", "logs/app.log"),
			MaxSize:    getEnvInt("LOG_FILE_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_FILE_MAX_BACKUPS", 7),
			MaxAge:     getEnvInt("LOG_FILE_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_FILE_COMPRESS", true),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 3306), // 默认端口
			User:     getEnv("DB_USER", "root"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   getEnv("DB_NAME", "plg"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379), // 默认端口
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Email: EmailConfig{
			Host:     getEnv("EMAIL_HOST", getEnv("SMTP_HOST", "smtp.gmail.com")),
			Port:     getEnvInt("EMAIL_PORT", getEnvInt("SMTP_PORT", 465)),
			Username: getEnv("EMAIL_USERNAME", os.Getenv("SMTP_USER")),
			Password: getEnv("EMAIL_PASSWORD", os.Getenv("SMTP_PASS")),
			From:     getEnv("EMAIL_FROM", getEnv("SMTP_FROM", os.Getenv("SMTP_USER"))),
			FromName: getEnv("EMAIL_FROM_NAME", "PLG"),
			UseTLS:   getEnvBool("EMAIL_USE_TLS", getEnvInt("EMAIL_PORT", getEnvInt("SMTP_PORT", 465)) == 465),
		},
		ECPay: ECPayConfig{
			MerchantID:    merchantID,
			HashKey:       hashKey,
			HashIV:        hashIV,
			PaymentURL:    getEnv("ECPAY_PAYMENT_URL", paymentURL),
			ClientBackURL: getEnv("ECPAY_CLIENT_BACK_URL", clientOrigin+"/orders"),
			PlatformID:    os.Getenv("ECPAY_PLATFORM_ID"),
			MapURL:        getEnv("ECPAY_MAP_URL", logisticsHost+"/Express/map"),
			CreateURL:     getEnv("ECPAY_LOGISTICS_CREATE_URL", logisticsHost+"/Express/Create"),
			SelectionURL:  getEnv("ECPAY_REDIRECT_V2_URL", logisticsHost+"/Express/v2/RedirectToLogisticsSelection"),
			Logistics: ECPayCredentials{
				MerchantID: getEnv("ECPAY_LOGISTICS_MERCHANT_ID", merchantID),
				HashKey:    getEnv("ECPAY_LOGISTICS_HASH_KEY", hashKey),
				HashIV:     getEnv("ECPAY_LOGISTICS_HASH_IV", hashIV),
			},
			SenderName:     getEnv("ECPAY_SENDER_NAME", "PLG寄件"),
			SenderPhone:    getEnv("ECPAY_SENDER_PHONE", "0911222333"),
			SenderZipCode:  getEnv("ECPAY_SENDER_ZIP", "100"),
			SenderAddress:  getEnv("ECPAY_SENDER_ADDRESS", "台北市信義區市府路45號"),
			RequestTimeout: time.Duration(getEnvInt("ECPAY_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Shopify: ShopifyConfig{
			StoreDomain:       os.Getenv("SHOPIFY_STORE_DOMAIN"),
			AccessToken:       os.Getenv("SHOPIFY_ACCESS_TOKEN"),
			APIVersion:        getEnv("SHOPIFY_API_VERSION", "2024-04"),
			StorefrontToken:   os.Getenv("SHOPIFY_STOREFRONT_ACCESS_TOKEN"),
			StorefrontVersion: getEnv("SHOPIFY_STOREFRONT_VERSION", "2024-04"),
			WebhookSecret:     os.Getenv("SHOPIFY_WEBHOOK_SECRET"),
			Timeout:           time.Duration(getEnvInt("SHOPIFY_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", "dev-secret"),
			CookieName:   "auth_token",
			TokenTTL:     7 * 24 * time.Hour,
			SecureCookie: production,
		},
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("GOOGLE_REDIRECT_URI"),
		},
		Reconcile: ReconcileConfig{
			Interval:   time.Duration(getEnvInt("RECONCILE_INTERVAL_MINUTES", 5)) * time.Minute,
			ClaimLease: time.Duration(getEnvInt("CLAIM_LEASE_SECONDS", 120)) * time.Second,
			BatchSize:  getEnvInt("RECONCILE_BATCH_SIZE", 20),
		},
	}

	return cfg, nil
}

// getEnv 读取环境变量，为空时返回默认值
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

// splitList 解析逗号分隔的列表，统一转为小写
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
