package cmd

import (
	"context"
	"fmt"
	"strings"

	"emperror.dev/errors"
	"github.com/asaskevich/govalidator"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/internal/database"
	"github.com/priyxstudio/sgo/internal/models"
)

const minPasswordLength = 8

var userCreateArgs struct {
	Email    string
	Name     string
	Password string
	Role     string
}

func newUserCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "user",
		Short: "Manage the accounts that can sign in to the shell.",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a new user account.",
		PreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
		},
		RunE: userCreateCmdRun,
	}
	create.Flags().StringVar(&userCreateArgs.Email, "email", "", "the email address used to sign in")
	create.Flags().StringVar(&userCreateArgs.Name, "name", "", "the display name of the user")
	create.Flags().StringVar(&userCreateArgs.Password, "password", "", "the password, prompted for when omitted")
	create.Flags().StringVar(&userCreateArgs.Role, "role", string(models.UserRoleUser), "the role of the user (admin or user)")
	_ = create.MarkFlagRequired("email")

	command.AddCommand(create)
	return command
}

func userCreateCmdRun(cmd *cobra.Command, _ []string) error {
	if userCreateArgs.Password == "" {
		err := huh.NewInput().
			Title("Password for " + userCreateArgs.Email).
			EchoMode(huh.EchoModePassword).
			Validate(validatePassword).
			Value(&userCreateArgs.Password).
			Run()
		if err != nil {
			return err
		}
	}

	db, _, err := database.Open(config.Get().Database, config.Get().Debug)
	if err != nil {
		return err
	}
	if sql, err := db.DB(); err == nil {
		defer sql.Close()
	}

	name := userCreateArgs.Name
	if name == "" {
		name = strings.Split(userCreateArgs.Email, "@")[0]
	}
	u, err := createUser(cmd.Context(), db, userCreateArgs.Email, name, userCreateArgs.Password, models.UserRole(userCreateArgs.Role))
	if err != nil {
		return err
	}
	fmt.Printf("Created %s account %s (id %d)\n", u.Role, u.Email, u.ID)
	return nil
}

// createUser validates the input and stores a new active user.
func createUser(ctx context.Context, db *gorm.DB, email, name, password string, role models.UserRole) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if !govalidator.IsEmail(email) {
		return nil, errors.Errorf("user: %q is not a valid email address", email)
	}
	if !models.ValidRole(role) {
		return nil, errors.Errorf("user: unknown role %q", role)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	if count > 0 {
		return nil, errors.Errorf("user: an account for %s already exists", email)
	}

	u := models.User{Email: email, Name: name, Role: role, Active: true}
	if err := u.SetPassword(password); err != nil {
		return nil, errors.Wrap(err, "user: failed to hash password")
	}
	if err := db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, errors.Wrap(err, "user: failed to create account")
	}
	return &u, nil
}

func validatePassword(p string) error {
	if len(p) < minPasswordLength {
		return errors.Errorf("password must be at least %d characters long", minPasswordLength)
	}
	return nil
}
