package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vx-labs/lazyfree/cli"
	"github.com/vx-labs/lazyfree/config"
	"github.com/vx-labs/lazyfree/engine"
	"github.com/vx-labs/lazyfree/object"
	"go.uber.org/zap"
)

var ErrUnknownKind = errors.New("unknown value kind")

func buildValue(kind string, size int) (object.Value, error) {
	switch kind {
	case "string":
		return object.NewString(make([]byte, size)), nil
	case "list":
		l := object.NewList(object.DefaultListFill)
		for i := 0; i < size; i++ {
			l.PushBack([]byte(strconv.Itoa(i)))
		}
		return l, nil
	case "set":
		s := object.NewSet()
		for i := 0; i < size; i++ {
			s.Add(strconv.Itoa(i))
		}
		return s, nil
	case "hash":
		h := object.NewHash()
		for i := 0; i < size; i++ {
			h.Set(strconv.Itoa(i), []byte("value"))
		}
		return h, nil
	case "zset":
		z := object.NewSortedSet()
		for i := 0; i < size; i++ {
			z.Add(float64(i), strconv.Itoa(i))
		}
		return z, nil
	case "stream":
		s := object.NewStream(object.DefaultStreamNodeEntries)
		for i := 0; i < size; i++ {
			if err := s.Add(object.StreamID{Ms: uint64(i + 1)}, "field", "value"); err != nil {
				return nil, err
			}
		}
		if err := s.CreateGroup("bench", object.StreamID{}); err != nil {
			return nil, err
		}
		if _, err := s.ReadGroup("bench", "consumer", size/2); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, errors.Wrap(ErrUnknownKind, kind)
}

func Bench(v *viper.Viper) *cobra.Command {
	c := &cobra.Command{
		Use:   "bench",
		Short: "Populate a database and discard it, reporting reclamation progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			keys, _ := cmd.Flags().GetInt("keys")
			size, _ := cmd.Flags().GetInt("size")
			kind, _ := cmd.Flags().GetString("kind")
			mode, _ := cmd.Flags().GetString("mode")
			wait, _ := cmd.Flags().GetBool("wait")

			ctx := cli.Bootstrap(cfg)
			defer ctx.Shutdown()
			logger := ctx.Logger
			store := ctx.Engine

			started := time.Now()
			for i := 0; i < keys; i++ {
				value, err := buildValue(kind, size)
				if err != nil {
					return err
				}
				if err := store.Set(0, fmt.Sprintf("bench:%d", i), object.New(value)); err != nil {
					return err
				}
			}
			logger.Info("populated database",
				zap.Int("key_count", keys),
				zap.String("value_kind", kind),
				zap.Int("value_size", size),
				zap.Duration("elapsed", time.Since(started)),
			)

			started = time.Now()
			switch mode {
			case "unlink", "del":
				names := make([]string, keys)
				for i := range names {
					names[i] = fmt.Sprintf("bench:%d", i)
				}
				if mode == "del" {
					_, err = store.Del(0, names...)
				} else {
					_, err = store.Unlink(0, names...)
				}
			case "flushdb":
				_, err = store.FlushDB(0, engine.FlushAsync)
			default:
				err = errors.Errorf("unknown discard mode %q", mode)
			}
			if err != nil {
				return err
			}
			logger.Info("discarded keys",
				zap.String("discard_mode", mode),
				zap.Duration("elapsed", time.Since(started)),
				zap.Uint64("lazyfree_pending_objects", ctx.Reclaimer.PendingCount()),
			)

			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for ctx.Reclaimer.PendingCount() > 0 {
				<-ticker.C
				logger.Info("reclamation progress",
					zap.Uint64("lazyfree_pending_objects", ctx.Reclaimer.PendingCount()),
					zap.Uint64("lazyfreed_objects", ctx.Reclaimer.FreedCount()),
				)
			}
			logger.Info("reclamation done",
				zap.Uint64("lazyfreed_objects", ctx.Reclaimer.FreedCount()),
				zap.Duration("elapsed", time.Since(started)),
			)
			fmt.Print(store.Info())
			if wait {
				ctx.WaitForSignal()
			}
			return nil
		},
	}
	c.Flags().IntP("keys", "n", 1000, "Number of keys to create")
	c.Flags().IntP("size", "s", 1000, "Number of elements in each value")
	c.Flags().StringP("kind", "k", "set", "Value kind: string, list, set, hash, zset or stream")
	c.Flags().StringP("mode", "m", "unlink", "Discard mode: unlink, del or flushdb")
	c.Flags().BoolP("wait", "", false, "Keep serving metrics until interrupted")
	config.RegisterFlags(c, v)
	return c
}
