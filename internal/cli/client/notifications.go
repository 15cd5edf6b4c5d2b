package client

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NotificationView is a notification as returned by the API.
type NotificationView struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Read      bool           `json:"read"`
	CreatedAt string         `json:"created_at"`
}

// MarkReadResult holds the number of notifications marked read.
type MarkReadResult struct {
	Updated int64 `json:"updated"`
}

// UnreadCountResult holds the unread notification count.
type UnreadCountResult struct {
	Count int64 `json:"count"`
}

// NotificationsCmd creates the notifications command group.
func NotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Manage your notifications",
	}

	cmd.AddCommand(notificationsListCmd())
	cmd.AddCommand(notificationsReadCmd())
	cmd.AddCommand(notificationsUnreadCmd())

	return cmd
}

func notificationsListCmd() *cobra.Command {
	var (
		unreadOnly bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runNotificationsList(cmd, unreadOnly, limit, outputJSON)
		},
	}

	cmd.Flags().BoolVarP(&unreadOnly, "unread", "u", false, "Only show unread notifications")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of notifications to show")

	return cmd
}

func runNotificationsList(cmd *cobra.Command, unreadOnly bool, limit int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	path := "/notifications"
	sep := "?"
	if unreadOnly {
		path += sep + "unread=true"
		sep = "&"
	}
	if limit > 0 {
		path += sep + "limit=" + strconv.Itoa(limit)
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var notifications []NotificationView
	if err := json.Unmarshal(resp.Data, &notifications); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		encoded, _ := json.MarshalIndent(notifications, "", "  ")
		fmt.Println(string(encoded))
		return nil
	}

	if len(notifications) == 0 {
		fmt.Println("No notifications.")
		return nil
	}

	for _, n := range notifications {
		marker := " "
		if !n.Read {
			marker = "*"
		}
		fmt.Printf("%s #%d [%s] %s %s\n", marker, n.ID, n.Type, n.CreatedAt, summarizeNotification(n))
	}

	return nil
}

// summarizeNotification pulls the most useful line out of a payload.
func summarizeNotification(n NotificationView) string {
	if q, ok := n.Payload["question"].(string); ok && q != "" {
		return truncate(q, 80)
	}
	if s, ok := n.Payload["status"].(string); ok && s != "" {
		return "request " + s
	}
	if msg, ok := n.Payload["message"].(string); ok && msg != "" {
		return truncate(msg, 80)
	}
	return ""
}

func notificationsReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read [id...]",
		Short: "Mark notifications as read",
		Long:  "Marks the given notifications as read, or all of them when no ids are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid notification id: %s", arg)
				}
				ids = append(ids, id)
			}
			return runNotificationsRead(cmd, ids)
		},
	}

	return cmd
}

func runNotificationsRead(cmd *cobra.Command, ids []int64) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/notifications/read", map[string]any{"ids": ids})
	if err != nil {
		return fmt.Errorf("mark read failed: %w", err)
	}

	var result MarkReadResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("Marked %d notification(s) read.\n", result.Updated)
	return nil
}

func notificationsUnreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Show the unread notification count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotificationsUnread(cmd)
		},
	}
}

func runNotificationsUnread(cmd *cobra.Command) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/notifications/unread")
	if err != nil {
		return fmt.Errorf("unread count failed: %w", err)
	}

	var result UnreadCountResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("%d unread notification(s)\n", result.Count)
	return nil
}
