package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gchat/internal/api"
)

var friendsCmd = &cobra.Command{
	Use:   "friends",
	Short: "List friends and pending requests",
	RunE:  runFriends,
}

var friendsAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Send a friend request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient().SendFriendRequest(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("friend request sent to %s\n", args[0])
		return nil
	},
}

var friendsAcceptCmd = &cobra.Command{
	Use:   "accept <user id>",
	Short: "Accept an incoming friend request",
	Args:  cobra.ExactArgs(1),
	RunE:  friendAction("accepted", (*api.Client).AcceptFriendRequest),
}

var friendsDenyCmd = &cobra.Command{
	Use:   "deny <user id>",
	Short: "Deny an incoming friend request",
	Args:  cobra.ExactArgs(1),
	RunE:  friendAction("denied", (*api.Client).DenyFriendRequest),
}

var friendsRemoveCmd = &cobra.Command{
	Use:   "remove <user id>",
	Short: "Remove a friend",
	Args:  cobra.ExactArgs(1),
	RunE:  friendAction("removed", (*api.Client).RemoveFriend),
}

func init() {
	friendsCmd.AddCommand(friendsAddCmd, friendsAcceptCmd, friendsDenyCmd, friendsRemoveCmd)
	rootCmd.AddCommand(friendsCmd)
}

func runFriends(cmd *cobra.Command, args []string) error {
	client := apiClient()
	ctx := cmd.Context()

	friends, err := client.Friends(ctx)
	if err != nil {
		return err
	}
	for _, f := range friends {
		fmt.Printf("%d\t%s\n", f.FriendID, f.Username)
	}

	reqs, err := client.FriendRequests(ctx)
	if err != nil {
		return err
	}
	for _, r := range reqs.Incoming {
		fmt.Printf("incoming\t%d\t%s\n", r.SenderID, r.Username)
	}
	for _, r := range reqs.Outgoing {
		fmt.Printf("outgoing\t%d\t%s\n", r.ReceiverID, r.Username)
	}
	return nil
}

func friendAction(verb string, fn func(*api.Client, context.Context, int64) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%q is not a user id", args[0])
		}
		if err := fn(apiClient(), cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("%s user %d\n", verb, id)
		return nil
	}
}
