package columnar

import (
	"fmt"
	"math/bits"

	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
	"github.com/colstore/secondary/internal/options"
)

// settings is the configuration shared by the builder and persisted into
// the footer so a reader reconstructs the exact same codecs.
type settings struct {
	subblockSize   int
	rowidsPerBlock int
	codec32        format.CodecKind
	codec64        format.CodecKind
	compression    format.CompressionKind
}

func defaultSettings() settings {
	return settings{
		subblockSize:   DefaultSubblockSize,
		rowidsPerBlock: 1024,
		codec32:        format.CodecPFOR,
		codec64:        format.CodecPFOR,
		compression:    format.CompressionNone,
	}
}

// BuilderOption configures a Builder.
type BuilderOption = options.Option[*Builder]

// WithSubblockSize overrides the decode unit inside a block. The size must
// be a power of two and at least 128.
func WithSubblockSize(size int) BuilderOption {
	return options.New(func(b *Builder) error {
		if size < 128 || bits.OnesCount(uint(size)) != 1 {
			return fmt.Errorf("%w: got %d", errs.ErrInvalidSubblockSize, size)
		}
		b.settings.subblockSize = size

		return nil
	})
}

// WithRowCodec selects the integer codec for 32-bit streams by name, as
// recorded in the footer settings.
func WithRowCodec(name string) BuilderOption {
	return options.New(func(b *Builder) error {
		kind, err := format.ParseCodecKind(name)
		if err != nil {
			return err
		}
		b.settings.codec32 = kind

		return nil
	})
}

// WithValueCodec selects the integer codec for 64-bit streams by name.
func WithValueCodec(name string) BuilderOption {
	return options.New(func(b *Builder) error {
		kind, err := format.ParseCodecKind(name)
		if err != nil {
			return err
		}
		b.settings.codec64 = kind

		return nil
	})
}

// WithBlockCompression layers a secondary byte compressor over every
// packed block payload. The default is no compression.
func WithBlockCompression(kind format.CompressionKind) BuilderOption {
	return options.NoError(func(b *Builder) {
		b.settings.compression = kind
	})
}

// ReaderOption configures a Columnar reader.
type ReaderOption = options.Option[*Columnar]

// WithBlockCacheBytes enables the shared decoded-block cache, bounded by
// the given byte budget. Zero (the default) disables caching.
func WithBlockCacheBytes(budget int64) ReaderOption {
	return options.NoError(func(c *Columnar) {
		c.cacheBudget = budget
	})
}
