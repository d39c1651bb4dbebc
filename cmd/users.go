package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"castgrab/internal/auth"
)

var (
	flagUserName string
	flagUserRole string
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage portal users and their roles",
}

var usersAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Create a user and print its API token",
	Args:  cobra.ExactArgs(1),
	RunE:  usersAddRun,
}

var usersAssignRoleCmd = &cobra.Command{
	Use:     "assign-role <email> <role>",
	Short:   "Change a user's role (e.g. super-admin)",
	Example: "  castgrab users assign-role ops@example.com super-admin",
	Args:    cobra.ExactArgs(2),
	RunE:    usersAssignRoleRun,
}

var usersTokenCmd = &cobra.Command{
	Use:   "token <email>",
	Short: "Replace a user's API token and print the new one",
	Args:  cobra.ExactArgs(1),
	RunE:  usersTokenRun,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE:  usersListRun,
}

var usersRolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Show roles and the permissions they grant",
	Args:  cobra.NoArgs,
	RunE:  usersRolesRun,
}

func init() {
	usersAddCmd.Flags().StringVar(&flagUserName, "name", "", "Display name")
	usersAddCmd.Flags().StringVar(&flagUserRole, "role", string(auth.RoleUser), "Role: super-admin | admin | manager | user")

	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersAssignRoleCmd)
	usersCmd.AddCommand(usersTokenCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersRolesCmd)
}

func usersAddRun(cmd *cobra.Command, args []string) error {
	role, err := auth.ParseRole(flagUserRole)
	if err != nil {
		return err
	}

	store, err := openUserStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	u, token, err := store.AddUser(backgroundContext(cmd), args[0], flagUserName, role)
	if err != nil {
		return fmt.Errorf("adding user: %w", err)
	}
	logger.Info().Str("email", u.Email).Str("role", string(u.Role)).Msg("user created")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s with role %s.\n", u.Email, u.Role)
	fmt.Fprintf(out, "API token (shown once): %s\n", token)
	return nil
}

func usersAssignRoleRun(cmd *cobra.Command, args []string) error {
	role, err := auth.ParseRole(args[1])
	if err != nil {
		return err
	}

	store, err := openUserStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.AssignRole(backgroundContext(cmd), args[0], role); err != nil {
		return fmt.Errorf("assigning role: %w", err)
	}
	logger.Info().Str("email", args[0]).Str("role", string(role)).Msg("role assigned")

	fmt.Fprintf(cmd.OutOrStdout(), "%s role assigned to %s.\n", role, args[0])
	return nil
}

func usersTokenRun(cmd *cobra.Command, args []string) error {
	store, err := openUserStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	token, err := store.RotateToken(backgroundContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("rotating token: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "New API token for %s (shown once): %s\n", args[0], token)
	return nil
}

func usersListRun(cmd *cobra.Command, args []string) error {
	store, err := openUserStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := store.List(backgroundContext(cmd))
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	if len(users) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No users found.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tNAME\tROLE\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Email, u.Name, u.Role, u.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func usersRolesRun(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, r := range auth.Roles {
		perms := make([]string, 0, len(r.Permissions()))
		for _, p := range r.Permissions() {
			perms = append(perms, string(p))
		}
		fmt.Fprintf(out, "%s\n  %s\n", r, strings.Join(perms, ", "))
	}
	return nil
}
