package ir

import "github.com/cespare/xxhash/v2"

// DomainMessageData prefixes content hashes of message data.
// Version suffix enables future algorithm migration.
const DomainMessageData = "brokercheck/message/v1"

// ContentHash is a fingerprint of message content. It is only compared for
// equality and never reversed, so validators do not retain payloads.
type ContentHash uint64

// HashMessageData computes the content hash of a message's key and payload.
//
// Format: xxhash64(domain + 0x00 + keyFlag [+ key + 0x00] + payload)
// The key flag keeps a missing key distinct from an empty one, and the
// null separator keeps the key/payload boundary unambiguous.
//
// The hash is seedless and stable across processes, so hashes saved in a
// checkpoint stay comparable after a restart.
func HashMessageData(d MessageData) ContentHash {
	h := xxhash.New()
	_, _ = h.WriteString(DomainMessageData)
	_, _ = h.Write([]byte{0x00})
	if d.Key != nil {
		_, _ = h.Write([]byte{0x01})
		_, _ = h.WriteString(*d.Key)
		_, _ = h.Write([]byte{0x00})
	} else {
		_, _ = h.Write([]byte{0x00})
	}
	_, _ = h.WriteString(d.Payload)
	return ContentHash(h.Sum64())
}
