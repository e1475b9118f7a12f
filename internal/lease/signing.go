package lease

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"calyx/internal/calyxmodel"
)

// Sign computes the agreed signing convention for a cosignature: an
// HMAC-SHA256 over "<leaseID>:<role>:<id>" keyed by secret. HMAC rather
// than a bare digest, since a cosignature
// must be unforgeable without the signer's key rather than merely a
// content fingerprint.
func Sign(secret []byte, leaseID string, role calyxmodel.CosignerRole, id string) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s:%s:%s", leaseID, role, id)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is the correct signature for the given
// lease/role/id under secret.
func Verify(secret []byte, leaseID string, role calyxmodel.CosignerRole, id, sig string) bool {
	want := Sign(secret, leaseID, role, id)
	return hmac.Equal([]byte(want), []byte(sig))
}
