package account

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"

	"otrng/crypto/ed448"
	"otrng/wire"
)

// FileStore persists an Account using spec.md §6's private-key-file
// format: one record per keypair, line 1 `"<protocol>:<account>"`,
// line 2 base64 of the 57-byte Ed448 symmetric seed, then a blank
// separator line. The account's long-term and forging keypairs are
// written as two consecutive records.
type FileStore struct {
	Path string
}

// NewFileStore returns a KeyStore backed by a single file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

const (
	recordLongTerm = "otrng-longterm"
	recordForging  = "otrng-forging"
)

// Save writes acc to the store's file, overwriting any prior contents.
func (fs *FileStore) Save(acc *Account) error {
	f, err := os.Create(fs.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writeRecord(w, recordLongTerm, acc.InstanceTag, acc.LongTerm); err != nil {
		return err
	}
	if err := writeRecord(w, recordForging, acc.InstanceTag, acc.Forging); err != nil {
		return err
	}
	return w.Flush()
}

func writeRecord(w *bufio.Writer, protocol string, tag wire.InstanceTag, kp *ed448.KeyPair) error {
	fmt.Fprintf(w, "%s:%d\n", protocol, uint32(tag))
	fmt.Fprintln(w, base64.StdEncoding.EncodeToString(kp.Seed()))
	fmt.Fprintln(w)
	return nil
}

// Load reads an Account back from the store's file. It returns
// ErrNoAccount if the file does not exist.
func (fs *FileStore) Load() (*Account, error) {
	f, err := os.Open(fs.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoAccount
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	longTermTag, longTerm, err := readRecord(sc, recordLongTerm)
	if err != nil {
		return nil, err
	}
	forgingTag, forging, err := readRecord(sc, recordForging)
	if err != nil {
		return nil, err
	}
	if longTermTag != forgingTag {
		return nil, fmt.Errorf("account: mismatched instance tags across records")
	}

	return &Account{
		InstanceTag: longTermTag,
		LongTerm:    longTerm,
		Forging:     forging,
	}, nil
}

func readRecord(sc *bufio.Scanner, wantProtocol string) (wire.InstanceTag, *ed448.KeyPair, error) {
	if !sc.Scan() {
		return 0, nil, fmt.Errorf("account: truncated key file")
	}
	var protocol string
	var tag uint32
	if _, err := fmt.Sscanf(sc.Text(), "%[^:]:%d", &protocol, &tag); err != nil {
		return 0, nil, fmt.Errorf("account: bad header line: %w", err)
	}
	if protocol != wantProtocol {
		return 0, nil, fmt.Errorf("account: expected %q record, got %q", wantProtocol, protocol)
	}

	if !sc.Scan() {
		return 0, nil, fmt.Errorf("account: truncated key file")
	}
	seed, err := base64.StdEncoding.DecodeString(sc.Text())
	if err != nil {
		return 0, nil, fmt.Errorf("account: bad base64 line: %w", err)
	}
	kp, err := ed448.KeyPairFromSeed(seed)
	if err != nil {
		return 0, nil, err
	}

	sc.Scan() // consume blank separator line, if present (EOF on final record)

	return wire.InstanceTag(tag), kp, nil
}
