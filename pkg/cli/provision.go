package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/toftewellness/wellness-api/pkg/auth"
	"github.com/toftewellness/wellness-api/pkg/system"
)

func NewProvisionAdminCommand() *cobra.Command {
	var (
		email         string
		name          string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "provision-admin",
		Short: "Create the first admin account",
		Long: "Create the first admin account through the same checks as POST /api/auth/setup,\n" +
			"using the configured setup secret. Use this when the HTTP setup route is disabled.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if !passwordStdin {
				return errors.New("--password-stdin is required; passwords are never read from flags")
			}
			password, err := readPassword(rt)
			if err != nil {
				return err
			}

			cfg, err := rt.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.SetupSecret == "" {
				return errors.New("auth.setupSecret must be configured to provision an admin")
			}
			logger, err := system.SetupLogger(rt.debug)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			log := logger.Sugar()

			ctx := cmd.Context()
			st, err := openStore(ctx, cfg.Database, log)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close(context.Background()) }()

			authn, err := newAuthenticator(st, cfg.Auth, log)
			if err != nil {
				return err
			}

			id, err := authn.Provision(ctx, auth.ProvisionRequest{
				Email:    email,
				Password: password,
				Name:     name,
				SetupKey: cfg.Auth.SetupSecret,
			})
			if err != nil {
				return provisionError(err, cfg.Auth.MinPasswordLength, log)
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Admin user created: %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address")
	cmd.Flags().StringVar(&name, "name", "", "Admin display name")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// readPassword reads the first line of the runtime's input.
func readPassword(rt *runtimeState) (string, error) {
	line, err := bufio.NewReader(rt.Reader()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func provisionError(err error, minLength int, log *zap.SugaredLogger) error {
	switch {
	case errors.Is(err, auth.ErrMissingFields):
		return errors.New("email, name and password are all required")
	case errors.Is(err, auth.ErrWeakPassword):
		return fmt.Errorf("password must be at least %d characters", minLength)
	case errors.Is(err, auth.ErrPasswordTooLong):
		return errors.New("password must be at most 72 bytes")
	case errors.Is(err, auth.ErrAlreadyProvisioned):
		return errors.New("an admin with this email already exists")
	default:
		log.Errorw("Provisioning failed", "error", err)
		return fmt.Errorf("provisioning admin: %w", err)
	}
}
