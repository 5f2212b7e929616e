package bachroot

import (
	"fmt"
	"os"
	"os/exec"
	"time"
)

// needsRootPrivileges checks if the requested command will run tools as root
func needsRootPrivileges(args []string) bool {
	if len(args) < 1 {
		return false
	}

	rootCommands := map[string]bool{
		"setup":           true,
		"update":          true,
		"sync":            true,
		"build":           true,
		"install-missing": true,
		"test":            true,
		"clean":           true,
		"shell":           true,
	}
	return rootCommands[args[0]]
}

// authenticateOnce performs a single authentication check at program start
// and keeps the sudo ticket fresh while the program runs.
func authenticateOnce() error {
	if os.Geteuid() == 0 {
		return nil
	}

	cmd := exec.Command("sudo", "-v")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sudo authentication failed: %w", err)
	}

	go func() {
		ticker := time.NewTicker(4 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			exec.Command("sudo", "-nv").Run()
		}
	}()

	debugf("authenticated via sudo")
	return nil
}
