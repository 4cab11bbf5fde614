// Package authtest 为测试生成一次性的 RSA 密钥对。
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/rev2018/placement-tracker/internal/auth"
)

// KeyPairPEM 生成 PKCS#1 私钥与 PKIX 公钥的 PEM 编码。
func KeyPairPEM(t testing.TB) (privatePEM, publicPEM []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	privatePEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	return privatePEM, publicPEM
}

// NewService 返回使用临时密钥的 AuthService。
func NewService(t testing.TB) *auth.AuthService {
	t.Helper()
	privatePEM, publicPEM := KeyPairPEM(t)
	svc, err := auth.NewAuthService(privatePEM, publicPEM, 15*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}
