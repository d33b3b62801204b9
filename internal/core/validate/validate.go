// Package validate provides shared validation functions.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hay-kot/alcl/internal/core/session"
)

// namePattern keeps session names safe for account names, sudoers
// fragment file names (sudo skips names containing a dot) and shell words.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// SessionName validates a session name in isolation.
func SessionName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name %q must be lowercase letters, digits and dashes, starting with a letter or digit", name)
	}
	return nil
}

// AccountFor validates name and checks that the derived account fits the
// host's username length limit.
func AccountFor(hostUser, name string) (string, error) {
	if err := SessionName(name); err != nil {
		return "", err
	}
	account := session.AccountName(hostUser, name)
	if len(account) > session.MaxAccountLength {
		return "", fmt.Errorf("account name %q is %d characters; the limit is %d, use a shorter session name",
			account, len(account), session.MaxAccountLength)
	}
	return account, nil
}
