package main

import (
	"context"
	"fmt"

	"trinity/internal/model"
	"trinity/internal/repository"
	"trinity/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-user",
		Short: "Create a staff or customer login",
		Long: `Create a login. Customers also get a billing profile, so they can
create and list their own invoices right away.`,
		Example: `  trinityctl seed-user --username admin --password 's3cret!' --role staff
  trinityctl seed-user --username ada --password pw --role customer \
      --email ada@example.com --first-name Ada --last-name Lovelace`,
		RunE: runSeedUser,
	}
	cmd.Flags().String("username", "", "login name (required)")
	cmd.Flags().String("password", "", "plain-text password (required)")
	cmd.Flags().String("role", model.RoleStaff, "staff or customer")
	cmd.Flags().String("email", "", "e-mail address; required for customers")
	cmd.Flags().String("first-name", "", "customer first name")
	cmd.Flags().String("last-name", "", "customer last name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runSeedUser(cmd *cobra.Command, _ []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	role, _ := cmd.Flags().GetString("role")
	email, _ := cmd.Flags().GetString("email")
	first, _ := cmd.Flags().GetString("first-name")
	last, _ := cmd.Flags().GetString("last-name")

	if role == model.RoleCustomer && email == "" {
		return fmt.Errorf("--email is required for customers")
	}

	cfg, db, err := openDB()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var emailPtr *string
	if email != "" {
		emailPtr = &email
	}

	var user *model.User
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		auth := service.NewAuthService(repository.NewUserRepository(tx), cfg)
		user, err = auth.CreateUser(ctx, username, password, role, emailPtr)
		if err != nil {
			return err
		}
		if role != model.RoleCustomer {
			return nil
		}
		return repository.NewCustomerRepository(tx).Create(ctx, &model.Customer{
			UserID:    &user.ID,
			FirstName: first,
			LastName:  last,
			Email:     email,
			IsActive:  true,
		})
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created %s user %q (%s)\n", user.Role, user.Username, user.ID)
	return nil
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := service.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
