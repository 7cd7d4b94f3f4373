package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"github.com/skip2/go-qrcode"

	"ms-booking/internal/models"
)

// PassGenerator produces door check-in passes for confirmed bookings:
// a QR code wrapping an AES-encrypted payload only the check-in scanner
// can decode.
type PassGenerator struct {
	secret []byte
}

func NewPassGenerator(secret string) *PassGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &PassGenerator{secret: hashed[:]}
}

type passPayload struct {
	BookingID string `json:"booking_id"`
	EventID   string `json:"event_id"`
	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id"`
}

// GenerateCheckInPass returns a PNG QR code for a confirmed booking.
func (g *PassGenerator) GenerateCheckInPass(booking models.Booking) ([]byte, error) {
	if booking.Status != models.StatusConfirmed {
		return nil, errors.New("check-in pass requires a confirmed booking")
	}

	data, err := json.Marshal(passPayload{
		BookingID: booking.ID,
		EventID:   booking.EventID,
		UserID:    booking.UserID,
		TenantID:  booking.TenantID,
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, g.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}
