package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// legacyDigestLength 舊版資料使用 SHA-256 十六進位字串 (64 字元)
const legacyDigestLength = sha256.Size * 2

// Bcrypt 使用 bcrypt 雜湊密碼，驗證時相容舊版 SHA-256 digest
type Bcrypt struct {
	cost int
}

// NewBcrypt cost 小於 bcrypt.MinCost 時使用 bcrypt.DefaultCost
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (b *Bcrypt) Verify(hash, plain string) bool {
	if isLegacyDigest(hash) {
		return subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(LegacyDigest(plain))) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// LegacyDigest 舊版資料格式的 SHA-256 十六進位 digest
func LegacyDigest(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

func isLegacyDigest(hash string) bool {
	if len(hash) != legacyDigestLength {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}
