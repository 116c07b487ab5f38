package participant

import (
	"crypto/md5"

	"ddscore/internal/ddsid"
)

// instanceHandleFromKey derives an InstanceHandle from a sample's serialized
// key, following the RTPS convention (DDS-RTPS spec section 9.6.3.3): keys
// of 16 bytes or fewer are used verbatim (zero-padded), longer keys are
// MD5-hashed down to 16 bytes. No third-party hashing library in the pack
// covers this single fixed-size digest, so crypto/md5 is used directly.
func instanceHandleFromKey(key []byte) ddsid.InstanceHandle {
	var h ddsid.InstanceHandle
	if len(key) <= len(h) {
		copy(h[:], key)
		return h
	}
	return ddsid.InstanceHandle(md5.Sum(key))
}
