package sqlstore

import (
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/corra-ai/corra-ai/app/store"
	"github.com/corra-ai/corra-ai/pkg/register"
	"github.com/corra-ai/corra-ai/pkg/sqlstore"
	"github.com/corra-ai/corra-ai/pkg/types"
)

func init() {
	sq.StatementBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

var provider = &Provider{
	stores: &Stores{},
}

func GetProvider() *Provider {
	return provider
}

type Provider struct {
	*sqlstore.SqlProvider
	stores  *Stores
	adapter store.DocumentAdapter
}

type Stores struct {
	store.EntryStore
	store.BlockStore
	store.FileMetaStore
	store.IngestTaskStore
	store.QueryLogStore
}

type RegisterKey struct{}

func MustSetup(m sqlstore.ConnectConfig, s ...sqlstore.ConnectConfig) func() *Provider {
	provider.SqlProvider = sqlstore.MustSetupProvider(m, s...)

	for _, f := range register.ResolveFuncHandlers[*Provider](RegisterKey{}) {
		f(provider)
	}

	// schema 能力探测只在启动时做一次，之后所有读写走选定的适配器
	if provider.HasExtendedSchema() {
		provider.adapter = NewExtendedAdapter(provider)
	} else {
		provider.adapter = NewLegacyAdapter(provider)
	}

	return func() *Provider {
		return provider
	}
}

// HasExtendedSchema 探测扩展 schema 是否存在。to_regclass 对不存在的
// 关系返回 NULL 而不是报错，适合做能力探测。
func (p *Provider) HasExtendedSchema() bool {
	var regclass *string
	err := p.SqlProvider.GetReplica().Get(&regclass,
		"SELECT to_regclass($1)::text", types.TABLE_DATA_BLOCK.Name())
	return err == nil && regclass != nil
}

// Install 初始化所有数据表
func (p *Provider) Install() error {
	if err := p.enableExtensions(); err != nil {
		return err
	}

	if err := p.ensureMigrationTable(); err != nil {
		return err
	}

	files, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return err
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		if executed, err := p.isFileExecuted(file.Name()); err != nil {
			return err
		} else if executed {
			continue
		}

		content, err := migrationFiles.ReadFile("migrations/" + file.Name())
		if err != nil {
			return err
		}

		if _, err = p.SqlProvider.GetMaster().Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s, %w", file.Name(), err)
		}

		if err = p.markFileExecuted(file.Name()); err != nil {
			return err
		}
	}

	// 建表之后重新选择适配器
	if p.HasExtendedSchema() {
		p.adapter = NewExtendedAdapter(p)
	}
	return nil
}

func (p *Provider) enableExtensions() error {
	extensions := []string{
		"CREATE EXTENSION IF NOT EXISTS vector;", // pgvector 扩展，用于向量操作
	}

	for _, ext := range extensions {
		if _, err := p.SqlProvider.GetMaster().Exec(ext); err != nil {
			return fmt.Errorf("failed to enable extension: %w\nSQL: %s", err, ext)
		}
	}
	return nil
}

func (p *Provider) ensureMigrationTable() error {
	createTableSQL := `
CREATE TABLE IF NOT EXISTS ` + types.TABLE_PREFIX + `schema_migrations (
    filename VARCHAR(255) PRIMARY KEY,
    executed_at BIGINT NOT NULL
);`
	_, err := p.SqlProvider.GetMaster().Exec(createTableSQL)
	return err
}

func (p *Provider) isFileExecuted(filename string) (bool, error) {
	var count int
	err := p.SqlProvider.GetReplica().Get(&count,
		"SELECT COUNT(*) FROM "+types.TABLE_PREFIX+"schema_migrations WHERE filename = $1", filename)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *Provider) markFileExecuted(filename string) error {
	_, err := p.SqlProvider.GetMaster().Exec(
		"INSERT INTO "+types.TABLE_PREFIX+"schema_migrations (filename, executed_at) VALUES ($1, $2) ON CONFLICT (filename) DO NOTHING",
		filename, time.Now().Unix())
	return err
}

func (p *Provider) EntryStore() store.EntryStore {
	return p.stores.EntryStore
}

func (p *Provider) BlockStore() store.BlockStore {
	return p.stores.BlockStore
}

func (p *Provider) FileMetaStore() store.FileMetaStore {
	return p.stores.FileMetaStore
}

func (p *Provider) IngestTaskStore() store.IngestTaskStore {
	return p.stores.IngestTaskStore
}

func (p *Provider) QueryLogStore() store.QueryLogStore {
	return p.stores.QueryLogStore
}

func (p *Provider) DocumentAdapter() store.DocumentAdapter {
	return p.adapter
}
