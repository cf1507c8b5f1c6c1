package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DialCode 国际电话区号
type DialCode struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

var dialCodes = []DialCode{
	{Label: "+886 臺灣", Value: "+886"},
	{Label: "+852 香港", Value: "+852"},
	{Label: "+853 澳門", Value: "+853"},
}

// Health 健康检查
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DialCodes 区号列表
func DialCodes(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, dialCodes)
}
