// Package visitors derives stable anonymous visitor signatures.
package visitors

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// fingerprint is serialized in this exact field order; changing it would
// re-identify every visitor.
type fingerprint struct {
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
	Hostname  string `json:"hostname"`
}

// Signature returns the hex SHA-256 digest of the visitor fingerprint.
// The same (ip, userAgent, hostname) triple always yields the same
// signature; any component changing yields a different one. An absent
// user agent is hashed as the empty string.
func Signature(ip, userAgent, hostname string) string {
	payload, err := json.Marshal(fingerprint{
		IP:        ip,
		UserAgent: userAgent,
		Hostname:  hostname,
	})
	if err != nil {
		// Marshaling a struct of strings cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
