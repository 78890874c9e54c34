// Package crypto 密码哈希、随机令牌和日志脱敏
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword bcrypt 哈希
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// RandomToken 返回 n 字节随机数的十六进制串
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// MaskPhone 0812345678 -> 081***5678
func MaskPhone(phone string) string {
	return maskMiddle(strings.TrimSpace(phone), 3, 4, "*")
}

// MaskLineID Uxxxx 形式的 LINE 用户 ID，保留前 4 位和后 2 位
func MaskLineID(id string) string {
	return maskMiddle(id, 4, 2, "...")
}

func maskMiddle(s string, head, tail int, filler string) string {
	if len(s) <= head+tail+1 {
		return s
	}
	if filler == "*" {
		filler = strings.Repeat("*", len(s)-head-tail)
	}
	return s[:head] + filler + s[len(s)-tail:]
}
