package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

func GeneratePaymentID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("pay_%d_%06d", timestamp, randomNum.Int64())
}

// GenerateTransferReference builds the human-typeable remittance code for
// a bank transfer: booking id fragment + date + random suffix. The payer
// copies this into the transfer note so an admin can match the incoming
// wire to the booking.
func GenerateTransferReference(bookingID string, now time.Time) string {
	frag := strings.ToUpper(strings.ReplaceAll(bookingID, "-", ""))
	if len(frag) > 8 {
		frag = frag[:8]
	}
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(10000))
	return fmt.Sprintf("%s-%s-%04d", frag, now.Format("060102"), randomNum.Int64())
}
