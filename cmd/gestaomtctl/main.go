// gestaomtctl is the operator tool: schema migrations and user bootstrap.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/config"
	"github.com/VCalixtoR/gestaomt-back/internal/infra"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 12

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	app := &cli.App{
		Name:  "gestaomtctl",
		Usage: "administracion de la base de gestaomt",
		Commands: []*cli.Command{
			migrateCommand(),
			seedUserCommand(),
			hashPasswordCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("gestaomtctl failed")
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "aplica o revierte las migraciones embebidas",
		Subcommands: []*cli.Command{
			{
				Name: "up",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					if err := infra.MigrateUp(cfg.DatabaseURL); err != nil {
						return err
					}
					log.Info().Msg("migrations applied")
					return nil
				},
			},
			{
				Name:  "down",
				Usage: "revierte --steps migraciones (0 = todas)",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					if err := infra.MigrateDown(cfg.DatabaseURL, c.Int("steps")); err != nil {
						return err
					}
					log.Info().Int("steps", c.Int("steps")).Msg("migrations reverted")
					return nil
				},
			},
		},
	}
}

func seedUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed-user",
		Usage: "crea un usuario con su registro de empleado",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mail", Required: true},
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
			&cli.StringFlag{Name: "type", Value: model.UserTypeEmployee},
			&cli.StringFlag{Name: "commission", Value: "0"},
		},
		Action: func(c *cli.Context) error {
			user, employee, err := buildSeedUser(
				c.String("mail"), c.String("name"), c.String("password"),
				c.String("type"), c.String("commission"),
			)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := infra.NewDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			users := repository.NewUserRepository(db.Gorm())
			err = db.Gorm().WithContext(c.Context).Transaction(func(tx *gorm.DB) error {
				if err := users.CreateTx(tx, user); err != nil {
					return err
				}
				employee.ID = user.ID
				return users.CreateEmployeeTx(tx, employee)
			})
			if err != nil {
				if repository.IsUniqueViolation(err) {
					return fmt.Errorf("ya existe un usuario con el mail %s", user.Mail)
				}
				return err
			}
			log.Info().Int64("user_id", user.ID).Str("mail", user.Mail).Str("type", user.Type).Msg("user created")
			return nil
		},
	}
}

// buildSeedUser validates the flags and hashes the password.
func buildSeedUser(mail, name, password, userType, commission string) (*model.User, *model.Employee, error) {
	mail = strings.TrimSpace(mail)
	if mail == "" || !strings.Contains(mail, "@") {
		return nil, nil, fmt.Errorf("mail invalido: %q", mail)
	}
	if userType != model.UserTypeAdmin && userType != model.UserTypeEmployee {
		return nil, nil, fmt.Errorf("tipo invalido: %q", userType)
	}
	if len(password) < 4 {
		return nil, nil, errors.New("la contrasena debe tener al menos 4 caracteres")
	}
	rate, err := decimal.NewFromString(commission)
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, nil, fmt.Errorf("comision invalida: %q", commission)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, nil, err
	}
	user := &model.User{
		Name:         strings.TrimSpace(name),
		Mail:         mail,
		PasswordHash: string(hash),
		Type:         userType,
		EntryAllowed: true,
	}
	return user, &model.Employee{Active: true, Commission: rate}, nil
}

func hashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash-password",
		Usage:     "imprime el hash bcrypt de una contrasena",
		ArgsUsage: "<password>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("uso: gestaomtctl hash-password <password>")
			}
			h, err := bcrypt.GenerateFromPassword([]byte(c.Args().First()), bcryptCost)
			if err != nil {
				return err
			}
			fmt.Println(string(h))
			return nil
		},
	}
}
