package dist

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/binary"
	"strconv"
)

// digest computes MD5(cookie || decimal_ascii(challenge)), the exact
// byte-for-byte input order the peer's Erlang/OTP runtime expects;
// preserving this is required for interop, even though the challenge
// itself is no longer generated the insecure way the original source
// did (see newChallenge).
func digest(cookie string, challenge uint32) [16]byte {
	h := md5.New()
	h.Write([]byte(cookie))
	h.Write([]byte(strconv.FormatUint(uint64(challenge), 10)))
	var sum [16]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// newChallenge sources 32 random bits from a secure RNG. The original
// source derived its challenge deterministically from MD5("challenge"),
// a cryptographic weakness noted in its own design notes; this is the
// recommended fix, not a protocol behavior change.
func newChallenge() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
