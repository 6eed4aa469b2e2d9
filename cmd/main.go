package main

import (
	"fmt"
	"os"

	"positionledger/src/auth"
	"positionledger/src/database"
	"positionledger/src/margin"
	"positionledger/src/payment"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "ledgerctl"
	app.Usage = "Operator tooling for the position ledger"
	app.Version = Version

	app.Commands = []cli.Command{
		migrateCMD,
		signCMD,
		tokenCMD,
		marginCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	migrateCMD = cli.Command{
		Name:        "migrate",
		Usage:       "run schema and data migrations",
		Action:      migrateAction,
		Description: `Connects with DB_DRIVER / DATABASE_URL_MAIN and migrates the schema`,
	}
	signCMD = cli.Command{
		Name:  "sign",
		Usage: "compute the gateway signature for a payment callback",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "order", Usage: "gateway order id"},
			cli.StringFlag{Name: "payment", Usage: "gateway payment id"},
			cli.StringFlag{Name: "secret", Usage: "gateway key secret", EnvVar: "PAYMENT_KEY_SECRET"},
		},
		Action: signAction,
	}
	tokenCMD = cli.Command{
		Name:  "token",
		Usage: "issue a bearer token for a user",
		Flags: []cli.Flag{
			cli.UintFlag{Name: "user", Usage: "user id"},
		},
		Action: tokenAction,
	}
	marginCMD = cli.Command{
		Name:  "margin",
		Usage: "evaluate the margin formula without touching the database",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "balance", Value: "0"},
			cli.Int64Flag{Name: "qty"},
			cli.StringFlag{Name: "amount", Value: "0"},
			cli.StringFlag{Name: "class", Value: "options"},
			cli.BoolFlag{Name: "interaday"},
			cli.StringFlag{Name: "profit", Value: "0"},
		},
		Action: marginAction,
	}
)

func migrateAction(_ *cli.Context) error {
	logrus.WithField("cmd", "migrate").Info("Running migrations")
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Migration failed")
		return err
	}
	return nil
}

func signAction(c *cli.Context) error {
	order, paymentID, secret := c.String("order"), c.String("payment"), c.String("secret")
	if order == "" || paymentID == "" || secret == "" {
		return cli.NewExitError("--order, --payment and --secret are required", 2)
	}
	fmt.Println(payment.Sign(secret, order, paymentID))
	return nil
}

func tokenAction(c *cli.Context) error {
	userID := c.Uint("user")
	if userID == 0 {
		return cli.NewExitError("--user is required", 2)
	}

	cfg := auth.GetConfig()
	token, err := auth.NewTokenManager(cfg.Secret, cfg.Issuer, cfg.TTL).Issue(userID)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func marginAction(c *cli.Context) error {
	balance, err := decimal.NewFromString(c.String("balance"))
	if err != nil {
		return fmt.Errorf("invalid --balance: %w", err)
	}
	amount, err := decimal.NewFromString(c.String("amount"))
	if err != nil {
		return fmt.Errorf("invalid --amount: %w", err)
	}
	profit, err := decimal.NewFromString(c.String("profit"))
	if err != nil {
		return fmt.Errorf("invalid --profit: %w", err)
	}

	result, err := margin.NewCalculator(margin.DefaultLeverageTable()).ComputeMarginBalance(margin.Input{
		Balance:     balance,
		Quantity:    c.Int64("qty"),
		Amount:      amount,
		IsInteraday: c.Bool("interaday"),
		StockType:   c.String("class"),
		Profit:      profit,
	})
	if err != nil {
		return err
	}

	fmt.Printf("balance=%s margin=%s\n", result.Balance.String(), result.Margin.String())
	return nil
}
