// cartctl talks to a running cart service over HTTP. It reads and edits owner
// carts and merges a guest cart kept in Redis into an owner cart.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/guestcart"
	"github.com/fjod/go_cart/storefront-cart/internal/logger"
	"github.com/fjod/go_cart/storefront-cart/internal/service"
	"github.com/fjod/go_cart/storefront-cart/internal/transport"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const usage = `usage: cartctl [flags] <command> [args]

commands:
  get <ownerId>
  add <ownerId> <productId> <quantity> [size]
  set <ownerId> <lineId> <quantity>
  remove <ownerId> <lineId>
  clear <ownerId>
  reconcile <guestId> <ownerId>
`

var errUsage = errors.New("invalid arguments")

func main() {
	log, err := logger.New(getEnv("LOG_LEVEL", "warn"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "cartctl:", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, log); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintln(os.Stderr, "cartctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, log *zap.Logger) error {
	fs := pflag.NewFlagSet("cartctl", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	baseURL := fs.String("url", getEnv("CART_SERVICE_URL", "http://localhost:8080"), "cart service base URL")
	timeout := fs.Duration("timeout", 5*time.Second, "per request timeout")
	redisAddr := fs.String("redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "guest cart Redis address, used by reconcile")
	redisPassword := fs.String("redis-password", getEnv("REDIS_PASSWORD", ""), "guest cart Redis password")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(errUsage, err.Error())
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	client := transport.NewClient(*baseURL, transport.Options{Timeout: *timeout, Logger: log})
	cmd, params := fs.Arg(0), fs.Args()[1:]

	var (
		cart *domain.Cart
		err  error
	)
	switch cmd {
	case "get":
		if err := arity(params, 1, 1); err != nil {
			return err
		}
		cart, err = client.FetchCart(ctx, params[0])
	case "add":
		if err := arity(params, 3, 4); err != nil {
			return err
		}
		qty, err := quantity(params[2])
		if err != nil {
			return err
		}
		size := ""
		if len(params) == 4 {
			size = params[3]
		}
		cart, err = client.AppendLine(ctx, params[0], params[1], size, qty)
		if err != nil {
			return err
		}
	case "set":
		if err := arity(params, 3, 3); err != nil {
			return err
		}
		key, err := domain.ParseLineID(params[1])
		if err != nil {
			return err
		}
		qty, err := quantity(params[2])
		if err != nil {
			return err
		}
		cart, err = client.UpdateLineQuantity(ctx, params[0], key, qty)
		if err != nil {
			return err
		}
	case "remove":
		if err := arity(params, 2, 2); err != nil {
			return err
		}
		key, err := domain.ParseLineID(params[1])
		if err != nil {
			return err
		}
		cart, err = client.RemoveLine(ctx, params[0], key)
		if err != nil {
			return err
		}
	case "clear":
		if err := arity(params, 1, 1); err != nil {
			return err
		}
		cart, err = client.ClearCart(ctx, params[0])
	case "reconcile":
		if err := arity(params, 2, 2); err != nil {
			return err
		}
		guestID, err := uuid.Parse(params[0])
		if err != nil {
			return errors.Wrap(errUsage, "guestId must be a UUID")
		}
		rc := redis.NewClient(&redis.Options{Addr: *redisAddr, Password: *redisPassword})
		defer rc.Close()

		guests := guestcart.NewRedisStore(rc, 0)
		cart, err = service.NewReconciler(guests, client, log).Reconcile(ctx, guestID.String(), params[1])
		if cart != nil {
			if perr := printCart(out, cart); perr != nil {
				return perr
			}
		}
		return err
	default:
		return errors.Wrapf(errUsage, "unknown command %q", cmd)
	}
	if err != nil {
		return err
	}
	return printCart(out, cart)
}

func arity(params []string, lo, hi int) error {
	if len(params) < lo || len(params) > hi {
		return errors.Wrapf(errUsage, "expected %d to %d arguments, got %d", lo, hi, len(params))
	}
	return nil
}

func quantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(errUsage, "quantity %q is not an integer", s)
	}
	return n, nil
}

type lineView struct {
	LineID    string `json:"lineId"`
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type cartView struct {
	OwnerID    string     `json:"ownerId"`
	Lines      []lineView `json:"lines"`
	TotalItems int        `json:"totalItems"`
}

func printCart(out io.Writer, cart *domain.Cart) error {
	view := cartView{OwnerID: cart.OwnerID, Lines: []lineView{}, TotalItems: cart.TotalItemCount()}
	for _, l := range cart.Lines {
		view.Lines = append(view.Lines, lineView{
			LineID:    l.Key().ID(),
			ProductID: l.ProductID,
			Size:      l.Size,
			Quantity:  l.Quantity,
		})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
