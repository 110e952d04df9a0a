package keys

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"portfolioexecutor/src/security"
)

// Encrypt reads one credential per line from r and writes its sealed form to
// w, ready to paste into BROKER_API_KEY or BROKER_API_SECRET. Blank lines are
// skipped and already sealed values are rejected.
func Encrypt(r io.Reader, w io.Writer) error {
	reader := bufio.NewScanner(r)
	reader.Buffer(make([]byte, 0, 1024), 1024*1024)

	line := 0
	for reader.Scan() {
		line++
		value := strings.TrimSpace(reader.Text())
		if value == "" {
			continue
		}
		if strings.HasPrefix(value, security.EncryptedPrefix) {
			return fmt.Errorf("line %d is already encrypted", line)
		}

		sealed, err := security.EncryptString(value)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := fmt.Fprintln(w, sealed); err != nil {
			return err
		}
	}
	return reader.Err()
}
