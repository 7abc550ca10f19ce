package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/haukened/mealplanner/internal/app"
	"github.com/haukened/mealplanner/internal/crypt"
	"github.com/haukened/mealplanner/internal/lambda"
	"github.com/haukened/mealplanner/internal/metrics"
)

type generateKeyInput struct{}

func (a *cliApp) generateKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate-key",
		Usage: "generate a new " + crypt.EnvKey,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "store-keyring",
				Usage: "also save the key in the OS keyring under encryption.keyring_user",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			storeKeyring := cmd.Bool("store-keyring")
			return action(a, "generate-key", needNothing, func(ctx context.Context, rt *runtime, _ generateKeyInput) (lambda.Fields, error) {
				key := crypt.GenerateKey()
				out := lambda.Fields{
					"encryption_key": key.Hex(),
					"instructions":   crypt.Instructions(key),
				}
				if storeKeyring {
					src, err := crypt.NewKeyringSource(rt.cfg.Encryption.KeyringUser)
					if err != nil {
						return nil, fmt.Errorf("%w: %v", lambda.ErrConfiguration, err)
					}
					if err := src.Save(ctx, key); err != nil {
						return nil, err
					}
					out["keyring_user"] = rt.cfg.Encryption.KeyringUser
				}
				return out, nil
			})(ctx, cmd)
		},
	}
}

type validateEncryptionInput struct {
	Detailed bool `json:"detailed"`
}

func (a *cliApp) validateEncryptionCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate-encryption",
		Usage: "check the configured encryption key",
		Action: action(a, "validate-encryption", needNothing, func(ctx context.Context, rt *runtime, in validateEncryptionInput) (lambda.Fields, error) {
			raw, err := crypt.ResolveKey(ctx, rt.cfg.Encryption.Key, rt.cfg.Encryption.KeyringUser)
			if err != nil {
				return nil, err
			}
			if in.Detailed {
				r := crypt.Inspect(raw)
				return lambda.Fields{
					"key_is_set":         r.KeyIsSet,
					"key_length":         r.KeyLength,
					"key_is_valid_hex":   r.KeyIsValidHex,
					"key_correct_length": r.KeyCorrectLength,
					"valid":              r.Valid(),
				}, nil
			}
			if _, err := crypt.ValidateEncryptionAtStartup(raw); err != nil {
				return nil, err
			}
			return lambda.Fields{"message": "encryption key is valid"}, nil
		}),
	}
}

type metricsInput struct {
	Prefix string `json:"prefix"`
}

func (a *cliApp) metricsCommand() *cli.Command {
	return &cli.Command{
		Name:  "metrics",
		Usage: "print persisted counters and summaries",
		Action: action(a, "metrics", needNothing, func(ctx context.Context, rt *runtime, in metricsInput) (lambda.Fields, error) {
			if rt.mx == nil {
				return nil, app.ErrConnectionFailed
			}
			counters, summaries, err := rt.mx.Snapshot(ctx)
			if err != nil {
				return nil, err
			}
			r := metrics.NewReport(counters, summaries, in.Prefix)
			return lambda.Fields{"counters": r.Counters, "summaries": r.Summaries}, nil
		}),
	}
}
