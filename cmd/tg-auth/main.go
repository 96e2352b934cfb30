// Command tg-auth bootstraps a Telegram session for telescout. It can reuse
// a Telegram Desktop session or authenticate with a phone number, then
// stores the session in the telescout database and prints an exportable
// session string.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/glebarez/sqlite"
	"github.com/gotd/td/session/tdesktop"
)

const defaultDatabase = "./telescout.db"

func main() {
	fmt.Println("=== telescout auth tool ===")
	fmt.Println("creates the telegram session telescout runs with")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	tdataPath := telegramDesktopPath()
	accounts, tdataErr := tdesktop.Read(tdataPath, nil)

	if tdataErr != nil || len(accounts) == 0 {
		fmt.Printf("no telegram desktop data at: %s\n", tdataPath)
		fmt.Print("enter telegram desktop path (or press enter to use phone auth): ")
		customPath, _ := reader.ReadString('\n')
		customPath = strings.TrimSpace(customPath)

		if customPath != "" {
			if !strings.HasSuffix(customPath, "tdata") {
				customPath = filepath.Join(customPath, "tdata")
			}
			accounts, tdataErr = tdesktop.Read(customPath, nil)
		}
	}

	useTdata := false
	if tdataErr == nil && len(accounts) > 0 {
		fmt.Printf("\ndetected %d telegram desktop session(s)\n", len(accounts))
		fmt.Println("choose authentication method:")
		fmt.Println("  1. use telegram desktop session (recommended)")
		fmt.Println("  2. authenticate with phone number (sms/code)")
		fmt.Print("\nenter choice [1]: ")

		choice, _ := reader.ReadString('\n')
		useTdata = strings.TrimSpace(choice) != "2"
	} else {
		fmt.Println("using phone auth")
	}

	apiID, apiHash := apiCredentials(reader)
	dbPath := databasePath(reader)

	var client *gotgproto.Client
	var err error
	if useTdata {
		client, err = authWithTdata(apiID, apiHash, dbPath, accounts, reader)
	} else {
		client, err = authWithPhone(apiID, apiHash, dbPath, reader)
	}
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	defer client.Stop()

	sessionString, err := client.ExportStringSession()
	if err != nil {
		fmt.Printf("error exporting session: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n✓ authentication successful!")
	fmt.Printf("logged in as: @%s\n", client.Self.Username)
	fmt.Printf("session stored in: %s\n", dbPath)
	fmt.Println("\nportable session string (optional, for TG_SESSION_STRING):")
	fmt.Println("---")
	fmt.Println(sessionString)
	fmt.Println("---")
	fmt.Println("\n⚠️  keep the database and this string secret: they grant full account access")
}

// telegramDesktopPath returns the platform default tdata directory.
func telegramDesktopPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Telegram Desktop", "tdata")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Telegram Desktop", "tdata")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "TelegramDesktop", "tdata")
	}
}

// apiCredentials reads api id and hash from env or prompts for them.
func apiCredentials(reader *bufio.Reader) (int, string) {
	apiIDStr := os.Getenv("TELEGRAM_API_ID")
	apiHash := os.Getenv("TELEGRAM_API_HASH")

	if apiIDStr == "" {
		fmt.Print("enter your api_id (from https://my.telegram.org): ")
		apiIDStr, _ = reader.ReadString('\n')
		apiIDStr = strings.TrimSpace(apiIDStr)
	}
	if apiHash == "" {
		fmt.Print("enter your api_hash: ")
		apiHash, _ = reader.ReadString('\n')
		apiHash = strings.TrimSpace(apiHash)
	}

	apiID, err := strconv.Atoi(apiIDStr)
	if err != nil {
		fmt.Printf("error: invalid api_id: %v\n", err)
		os.Exit(1)
	}
	return apiID, apiHash
}

// databasePath asks where to store the session; the daemon must point at
// the same file.
func databasePath(reader *bufio.Reader) string {
	fmt.Printf("database path [%s]: ", defaultDatabase)
	path, _ := reader.ReadString('\n')
	path = strings.TrimSpace(path)
	if path == "" {
		return defaultDatabase
	}
	return path
}

// authWithTdata imports a Telegram Desktop session into the database.
func authWithTdata(apiID int, apiHash, dbPath string, accounts []tdesktop.Account, reader *bufio.Reader) (*gotgproto.Client, error) {
	selected := accounts[0]
	if len(accounts) > 1 {
		fmt.Printf("\nfound %d telegram accounts\n", len(accounts))
		fmt.Print("select account number [1]: ")
		choice, _ := reader.ReadString('\n')
		if n, err := strconv.Atoi(strings.TrimSpace(choice)); err == nil && n >= 1 && n <= len(accounts) {
			selected = accounts[n-1]
		}
	}

	fmt.Println("\nauthenticating with telegram desktop session...")
	return gotgproto.NewClient(
		apiID,
		apiHash,
		gotgproto.ClientTypePhone(""),
		&gotgproto.ClientOpts{
			Session:          sessionMaker.TdataSession(selected).Name(dbPath),
			DisableCopyright: true,
		},
	)
}

// authWithPhone authenticates interactively with a login code.
func authWithPhone(apiID int, apiHash, dbPath string, reader *bufio.Reader) (*gotgproto.Client, error) {
	fmt.Print("enter your phone number (with country code, e.g. +15551234567): ")
	phone, _ := reader.ReadString('\n')
	phone = strings.TrimSpace(phone)

	fmt.Println("\nauthenticating... (check telegram for the login code)")
	return gotgproto.NewClient(
		apiID,
		apiHash,
		gotgproto.ClientTypePhone(phone),
		&gotgproto.ClientOpts{
			Session:          sessionMaker.SqlSession(sqlite.Open(dbPath)),
			DisableCopyright: true,
		},
	)
}
