// Package password implements password hashing, verification, the length
// policy applied before hashing, and random password generation.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.Verify] never returns an error: a malformed or unsupported hash
// simply does not match. [Argon2.NeedsUpgrade] reports hashes produced with
// weaker parameters so callers can re-hash after a successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other mfauth package.
//   - Log plaintext passwords or hashes.
package password
