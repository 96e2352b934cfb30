// Command list-groups prints the channels and groups the account is a
// member of, with the IDs to put in the channels section of config.yaml.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/gotd/td/tg"
)

const pageSize = 100

func main() {
	ctx := context.Background()

	apiIDStr := os.Getenv("TELEGRAM_API_ID")
	apiHash := os.Getenv("TELEGRAM_API_HASH")
	sessionString := os.Getenv("TG_SESSION_STRING")

	if apiIDStr == "" || apiHash == "" || sessionString == "" {
		fmt.Println("error: missing required environment variables")
		fmt.Println("please set: TELEGRAM_API_ID, TELEGRAM_API_HASH, TG_SESSION_STRING")
		fmt.Println("(run tg-auth to obtain a session string)")
		os.Exit(1)
	}

	apiID, err := strconv.Atoi(apiIDStr)
	if err != nil {
		fmt.Printf("error: invalid TELEGRAM_API_ID: %v\n", err)
		os.Exit(1)
	}

	client, err := gotgproto.NewClient(
		apiID,
		apiHash,
		gotgproto.ClientTypePhone(""),
		&gotgproto.ClientOpts{
			Session:          sessionMaker.StringSession(sessionString),
			DisableCopyright: true,
			InMemory:         true, // don't write to disk
		},
	)
	if err != nil {
		fmt.Printf("error creating client: %v\n", err)
		os.Exit(1)
	}
	defer client.Stop()

	fmt.Println("fetching dialogs...")

	chats, err := fetchDialogChats(ctx, client.API())
	if err != nil {
		fmt.Printf("error fetching dialogs: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nyour groups and channels (%d):\n\n", len(chats))
	fmt.Printf("%-16s | %-8s | %-35s | %s\n", "id", "type", "title", "username")
	fmt.Println(strings.Repeat("-", 80))

	for _, c := range chats {
		switch chat := c.(type) {
		case *tg.Channel:
			kind := "group"
			if chat.Broadcast {
				kind = "channel"
			}
			username := "-"
			if chat.Username != "" {
				username = "@" + chat.Username
			}
			fmt.Printf("%-16d | %-8s | %-35s | %s\n", chat.ID, kind, truncate(chat.Title, 35), username)
		case *tg.Chat:
			fmt.Printf("%-16d | %-8s | %-35s | %s\n", chat.ID, "group", truncate(chat.Title, 35), "-")
		}
	}

	fmt.Println("\nput the id (or @username) in the channels list of config.yaml")
}

// fetchDialogChats pages through the account's dialogs and returns the
// channels and basic groups, deduplicated, in dialog order.
func fetchDialogChats(ctx context.Context, api *tg.Client) ([]tg.ChatClass, error) {
	var (
		chats      []tg.ChatClass
		seen       = map[int64]bool{}
		offsetDate int
		offsetID   int
	)

	for {
		res, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
			OffsetDate: offsetDate,
			OffsetID:   offsetID,
			OffsetPeer: &tg.InputPeerEmpty{},
			Limit:      pageSize,
		})
		if err != nil {
			return nil, err
		}

		var (
			pageChats    []tg.ChatClass
			pageMessages []tg.MessageClass
			pageDialogs  int
		)
		switch d := res.(type) {
		case *tg.MessagesDialogs:
			pageChats = d.Chats
			pageMessages = d.Messages
			pageDialogs = len(d.Dialogs)
		case *tg.MessagesDialogsSlice:
			pageChats = d.Chats
			pageMessages = d.Messages
			pageDialogs = len(d.Dialogs)
		default:
			return chats, nil
		}

		added := 0
		for _, c := range pageChats {
			var id int64
			switch chat := c.(type) {
			case *tg.Channel:
				id = chat.ID
			case *tg.Chat:
				id = chat.ID
			default:
				continue
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			chats = append(chats, c)
			added++
		}

		if pageDialogs < pageSize || len(pageMessages) == 0 || added == 0 {
			return chats, nil
		}

		// advance the offset to the oldest message of this page
		switch m := pageMessages[len(pageMessages)-1].(type) {
		case *tg.Message:
			offsetDate = m.Date
			offsetID = m.ID
		case *tg.MessageService:
			offsetDate = m.Date
			offsetID = m.ID
		default:
			return chats, nil
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
