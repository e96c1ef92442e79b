package engines

import (
	"fmt"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/bububa/regulation-agents/components/vectordb"
	"github.com/bububa/regulation-agents/components/vectordb/engines/chromem"
	"github.com/bububa/regulation-agents/components/vectordb/engines/memory"
)

var (
	FromChromem = chromem.New
	FromMemory  = memory.New
)

// New builds the configured engine
func New(opts vectordb.Options) (vectordb.Engine, error) {
	options := []vectordb.Option{
		vectordb.WithTopK(opts.TopK),
		vectordb.WithMinScore(opts.MinScore),
	}
	switch opts.EngineType {
	case vectordb.Memory, "":
		return FromMemory(options...), nil
	case vectordb.Chromem:
		var (
			db  *chromemgo.DB
			err error
		)
		if opts.Path != "" {
			if db, err = chromemgo.NewPersistentDB(opts.Path, opts.Compress); err != nil {
				return nil, fmt.Errorf("open chromem db %s: %w", opts.Path, err)
			}
		} else {
			db = chromemgo.NewDB()
		}
		return FromChromem(db, options...), nil
	}
	return nil, fmt.Errorf("unsupported vectordb engine: %s", opts.EngineType)
}
