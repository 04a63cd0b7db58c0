package kiosk

import (
	"fmt"
	"math/rand"
)

// GeneratePIN 生成4位取件码，范围1000-9999
func GeneratePIN() string {
	return fmt.Sprintf("%04d", 1000+rand.Intn(9000))
}
