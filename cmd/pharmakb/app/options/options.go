// Package options aggregates the pharmakb command-line options.
package options

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/pharmakb/pharmakb/internal/pharmakb"
	cacheopts "github.com/pharmakb/pharmakb/pkg/options/cache"
	cpicopts "github.com/pharmakb/pharmakb/pkg/options/cpic"
	llmopts "github.com/pharmakb/pharmakb/pkg/options/llm"
	logopts "github.com/pharmakb/pharmakb/pkg/options/logger"
	milvusopts "github.com/pharmakb/pharmakb/pkg/options/milvus"
	mongodbopts "github.com/pharmakb/pharmakb/pkg/options/mongodb"
	pipelineopts "github.com/pharmakb/pharmakb/pkg/options/pipeline"
	serveropts "github.com/pharmakb/pharmakb/pkg/options/server"
)

// Options contains all configuration for the pharmakb server.
type Options struct {
	Server    *serveropts.Options      `json:"server" mapstructure:"server"`
	Log       *logopts.Options         `json:"log" mapstructure:"log"`
	MongoDB   *mongodbopts.Options     `json:"mongodb" mapstructure:"mongodb"`
	Milvus    *milvusopts.Options      `json:"milvus" mapstructure:"milvus"`
	Cache     *cacheopts.Options       `json:"cache" mapstructure:"cache"`
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	Chat      *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`
	Pipeline  *pipelineopts.Options    `json:"pipeline" mapstructure:"pipeline"`
	CPIC      *cpicopts.Options        `json:"cpic" mapstructure:"cpic"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Server:    serveropts.NewOptions(),
		Log:       logopts.NewOptions(),
		MongoDB:   mongodbopts.NewOptions(),
		Milvus:    milvusopts.NewOptions(),
		Cache:     cacheopts.NewOptions(),
		Embedding: llmopts.NewEmbeddingOptions(),
		Chat:      llmopts.NewChatOptions(),
		Pipeline:  pipelineopts.NewOptions(),
		CPIC:      cpicopts.NewOptions(),
	}
}

// AddFlags registers all option flags.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.Server.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.MongoDB.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.Cache.AddFlags(fs)
	o.Embedding.AddFlags(fs, "embedding")
	o.Chat.AddFlags(fs, "chat")
	o.Pipeline.AddFlags(fs)
	o.CPIC.AddFlags(fs)
}

// Complete fills in derived defaults.
func (o *Options) Complete() error {
	if err := o.Embedding.Complete(); err != nil {
		return err
	}
	return o.Chat.Complete()
}

// Validate checks all option values.
func (o *Options) Validate() error {
	var errs []error
	errs = append(errs, o.Server.Validate()...)
	errs = append(errs, o.MongoDB.Validate()...)
	errs = append(errs, o.Milvus.Validate()...)
	errs = append(errs, o.Cache.Validate()...)
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.Chat.Validate()...)
	errs = append(errs, o.Pipeline.Validate()...)
	errs = append(errs, o.CPIC.Validate()...)
	if err := o.Log.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %v", errs)
	}
	return nil
}

// Config builds the server configuration from the options.
func (o *Options) Config() *pharmakb.Config {
	return &pharmakb.Config{
		ServerOptions:    o.Server,
		LogOptions:       o.Log,
		MongoOptions:     o.MongoDB,
		MilvusOptions:    o.Milvus,
		CacheOptions:     o.Cache,
		EmbeddingOptions: o.Embedding,
		ChatOptions:      o.Chat,
		PipelineOptions:  o.Pipeline,
		CPICOptions:      o.CPIC,
	}
}
