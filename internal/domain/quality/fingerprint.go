package quality

import (
	"crypto/md5"
	"encoding/hex"
)

// Fingerprint derives the deduplication identity of a defect record from the
// four fields that define it: part number, serial number, raw event date and
// defect description. Missing fields contribute an empty string.
//
// Two source rows agreeing on these four fields collapse to one fingerprint
// even when machine, operator or comment fields differ. That collapse is the
// documented contract of the clean table, matching the digests already stored
// there, so both the hash function and the field subset are fixed.
func Fingerprint(partNumber, serialNumber, rawDate, description string) string {
	sum := md5.Sum([]byte(partNumber + "_" + serialNumber + "_" + rawDate + "_" + description))
	return hex.EncodeToString(sum[:])
}

// FingerprintEvent computes the fingerprint from a raw event's fields.
func FingerprintEvent(e RawEvent) string {
	return Fingerprint(
		e.Field("part_number"),
		e.Field("serial_number"),
		e.Field("date"),
		e.Field("code_description"),
	)
}
