// Command migrate manages the wallet schema.
//
//	migrate [-dir path] up|down|status|check
//	migrate [-dir path] to <version>
//	migrate [-dir path] new <name>
//
// Without -dir the migrations compiled into the binary are used, except by
// new, which writes into the repository's migration directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/walletcore/pkg/config"
	"github.com/angelmondragon/walletcore/pkg/db"
	"github.com/angelmondragon/walletcore/pkg/logger"
	"github.com/angelmondragon/walletcore/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", "", "migration directory (default: embedded schema)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [-dir path] up|down|status|check|to <version>|new <name>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, args := flag.Arg(0), flag.Args()[1:]

	switch command {
	case "new":
		if len(args) != 1 {
			fail("new needs exactly one migration name")
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.NewFile(target, args[0], time.Now())
		if err != nil {
			fail(err.Error())
		}
		fmt.Println(path)
		return
	case "check":
		if err := migrate.Validate(migrations(*dir)); err != nil {
			fail(err.Error())
		}
		fmt.Println("migrations ok")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail("load config: " + err.Error())
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "command": command})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "connect database", err)
		os.Exit(1)
	}
	defer client.Close()
	conn, err := client.DB().DB()
	if err != nil {
		logg.Error(ctx, "unwrap sql handle", err)
		os.Exit(1)
	}

	runner, err := migrate.NewRunner(conn, migrations(*dir), logg)
	if err != nil {
		logg.Error(ctx, "load migrations", err)
		os.Exit(1)
	}

	switch command {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "status":
		err = runner.Status(ctx, os.Stdout)
	case "to":
		if len(args) != 1 {
			fail("to needs a target version")
		}
		version, parseErr := strconv.ParseInt(args[0], 10, 64)
		if parseErr != nil {
			fail(fmt.Sprintf("version %q is not YYYYMMDDHHMMSS", args[0]))
		}
		err = runner.To(ctx, version)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
}

func migrations(dir string) fs.FS {
	if dir == "" {
		return migrate.Schema()
	}
	return os.DirFS(dir)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "migrate:", msg)
	os.Exit(1)
}
