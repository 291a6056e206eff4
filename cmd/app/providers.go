package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	domainagent "github.com/yanqian/ai-helloworld/internal/domain/agent"
	"github.com/yanqian/ai-helloworld/internal/domain/auth"
	"github.com/yanqian/ai-helloworld/internal/domain/faq"
	"github.com/yanqian/ai-helloworld/internal/domain/formpipeline"
	"github.com/yanqian/ai-helloworld/internal/domain/rag"
	"github.com/yanqian/ai-helloworld/internal/domain/summarizer"
	"github.com/yanqian/ai-helloworld/internal/domain/uvadvisor"
	infraagent "github.com/yanqian/ai-helloworld/internal/infra/agent"
	"github.com/yanqian/ai-helloworld/internal/infra/config"
	"github.com/yanqian/ai-helloworld/internal/infra/faqrepo"
	"github.com/yanqian/ai-helloworld/internal/infra/faqstore"
	"github.com/yanqian/ai-helloworld/internal/infra/llm/chatgpt"
	formregistry "github.com/yanqian/ai-helloworld/internal/infra/formpipeline/registry"
	formrepo "github.com/yanqian/ai-helloworld/internal/infra/formpipeline/repo"
	ragchunker "github.com/yanqian/ai-helloworld/internal/infra/rag/chunker"
	ragembedder "github.com/yanqian/ai-helloworld/internal/infra/rag/embedder"
	ragimaging "github.com/yanqian/ai-helloworld/internal/infra/rag/imaging"
	ragocr "github.com/yanqian/ai-helloworld/internal/infra/rag/ocr"
	ragpdfextract "github.com/yanqian/ai-helloworld/internal/infra/rag/pdfextract"
	ragrepo "github.com/yanqian/ai-helloworld/internal/infra/rag/repo"
	ragstorage "github.com/yanqian/ai-helloworld/internal/infra/rag/storage"
	"github.com/yanqian/ai-helloworld/internal/infra/userrepo"
	"github.com/yanqian/ai-helloworld/internal/infra/uv/datagov"
)

func provideSummaryConfig(cfg *config.Config) summarizer.Config {
	return summarizer.Config{
		MaxSummaryLen: cfg.Summary.MaxSummaryLen,
		MaxKeywords:   cfg.Summary.MaxKeywords,
		DefaultPrompt: cfg.Summary.DefaultPrompt,
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
	}
}

func provideChatGPTClient(cfg *config.Config) (*chatgpt.Client, error) {
	return chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
}

func provideUVAdvisorConfig(cfg *config.Config) uvadvisor.Config {
	return uvadvisor.Config{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Prompt:      cfg.UVAdvisor.Prompt,
		SourceURL:   cfg.UVAdvisor.APIBaseURL,
	}
}

func provideUVClient(cfg *config.Config) *datagov.Client {
	return datagov.NewClient(cfg.UVAdvisor.APIBaseURL)
}

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:          cfg.Auth.JWTSecret,
		TokenTTL:        cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
	}
}

func provideFAQConfig(cfg *config.Config) faq.Config {
	return faq.Config{
		Model:               cfg.LLM.Model,
		EmbeddingModel:      cfg.LLM.EmbeddingModel,
		Temperature:         cfg.LLM.Temperature,
		Prompt:              cfg.FAQ.Prompt,
		CacheTTL:            cfg.FAQ.CacheTTL,
		TopRecommendations:  cfg.FAQ.TopRecommendations,
		SimilarityThreshold: cfg.FAQ.SimilarityThreshold,
	}
}

func provideFAQRepository(cfg *config.Config, logger *slog.Logger) faq.QuestionRepository {
	fallback := faqrepo.NewMemoryRepository()
	dsn := strings.TrimSpace(cfg.FAQ.Postgres.DSN)
	if dsn == "" {
		logger.Info("faq postgres dsn not set, using memory repository")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repository", "error", err)
		return fallback
	}
	if cfg.FAQ.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.FAQ.Postgres.MaxConns
	}
	if cfg.FAQ.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.FAQ.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repository", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repository", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("faq postgres repository enabled")
	return faqrepo.NewPostgresRepository(pool)
}

func provideFAQStore(cfg *config.Config, logger *slog.Logger) faq.Store {
	if cfg.FAQ.Redis.Enabled {
		opt, err := buildValkeyOptions(cfg.FAQ.Redis.Addr)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
			return faqstore.NewMemoryStore()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory store", "error", err)
			return faqstore.NewMemoryStore()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory store", "error", err)
		} else {
			logger.Info("faq valkey store enabled", "addr", cfg.FAQ.Redis.Addr)
			return faqstore.NewValkeyStore(client, "faq")
		}
	}
	return faqstore.NewMemoryStore()
}

func provideAuthRepository(cfg *config.Config, logger *slog.Logger) auth.Repository {
	fallback := userrepo.NewMemoryRepository()
	dsn := strings.TrimSpace(cfg.Auth.Postgres.DSN)
	if dsn == "" {
		logger.Info("auth postgres dsn not set, using memory repository")
		return fallback
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid auth postgres dsn, using memory repository", "error", err)
		return fallback
	}
	if cfg.Auth.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Auth.Postgres.MaxConns
	}
	if cfg.Auth.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Auth.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize auth postgres pool, using memory repository", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("auth postgres ping failed, using memory repository", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("auth postgres repository enabled")
	return userrepo.NewPostgresRepository(pool)
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	addr = strings.TrimSpace(addr)
	if strings.Contains(addr, "://") {
		opt, err = valkey.ParseURL(addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

var (
	basePoolOnce sync.Once
	basePool     *pgxpool.Pool
)

// basePostgresPool is the shared pool ragPostgresPool falls back to when its
// own DSN is unset; formPostgresPool in turn falls back to the rag pool, so
// with neither DSN set both end up on this pool, since most deployments run
// rag and form state in the same database. It is sourced from the legacy
// cfg.UploadAsk.Postgres block, which predates those two and still doubles
// as the default connection config.
func basePostgresPool(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	basePoolOnce.Do(func() {
		dsn := strings.TrimSpace(cfg.UploadAsk.Postgres.DSN)
		if dsn == "" {
			logger.Info("base postgres dsn not set, using memory repositories")
			return
		}
		poolConfig, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			logger.Error("invalid base postgres dsn, using memory repositories", "error", err)
			return
		}
		registerPgVector(poolConfig, logger)
		if cfg.UploadAsk.Postgres.MaxConns > 0 {
			poolConfig.MaxConns = cfg.UploadAsk.Postgres.MaxConns
		}
		if cfg.UploadAsk.Postgres.MinConns > 0 {
			poolConfig.MinConns = cfg.UploadAsk.Postgres.MinConns
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			logger.Error("failed to initialize base postgres pool, using memory repositories", "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("base postgres ping failed, using memory repositories", "error", err)
			pool.Close()
			return
		}
		logger.Info("base postgres repository enabled")
		basePool = pool
	})
	return basePool
}

var (
	ragPoolOnce sync.Once
	ragPool     *pgxpool.Pool
)

func ragPostgresPool(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	ragPoolOnce.Do(func() {
		dsn := strings.TrimSpace(cfg.RAG.Postgres.DSN)
		if dsn == "" {
			logger.Info("rag postgres dsn not set, falling back to base pool")
			ragPool = basePostgresPool(cfg, logger)
			return
		}
		poolConfig, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			logger.Error("invalid rag postgres dsn", "error", err)
			return
		}
		registerPgVector(poolConfig, logger)
		if cfg.RAG.Postgres.MaxConns > 0 {
			poolConfig.MaxConns = cfg.RAG.Postgres.MaxConns
		}
		if cfg.RAG.Postgres.MinConns > 0 {
			poolConfig.MinConns = cfg.RAG.Postgres.MinConns
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			logger.Error("failed to initialize rag postgres pool", "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("rag postgres ping failed", "error", err)
			pool.Close()
			return
		}
		logger.Info("rag postgres pool enabled")
		ragPool = pool
	})
	return ragPool
}

func provideRAGTextEmbedder(client *chatgpt.Client, cfg *config.Config, logger *slog.Logger) rag.TextEmbedder {
	model := strings.TrimSpace(cfg.LLM.EmbeddingModel)
	if client != nil && model != "" {
		return ragembedder.NewChatGPTTextEmbedder(client, model, cfg.RAG.VectorDim, logger)
	}
	logger.Warn("rag text embedder unavailable, using deterministic embedder")
	return ragembedder.NewDeterministicTextEmbedder(cfg.RAG.VectorDim)
}

func provideRAGImageEmbedder(client *chatgpt.Client, cfg *config.Config, logger *slog.Logger) rag.ImageEmbedder {
	model := strings.TrimSpace(cfg.LLM.EmbeddingModel)
	if client != nil && model != "" {
		return ragembedder.NewChatGPTImageEmbedder(client, model, cfg.RAG.VectorDim, logger)
	}
	logger.Warn("rag image embedder unavailable, using deterministic embedder")
	return ragembedder.NewDeterministicImageEmbedder(cfg.RAG.VectorDim)
}

func provideRAGTextIndex(cfg *config.Config, embedder rag.TextEmbedder, logger *slog.Logger) rag.TextIndex {
	pool := ragPostgresPool(cfg, logger)
	return ragrepo.NewTextVectorIndex(pool, embedder, logger)
}

func provideRAGImageIndex(cfg *config.Config, embedder rag.ImageEmbedder, logger *slog.Logger) rag.ImageIndex {
	pool := ragPostgresPool(cfg, logger)
	return ragrepo.NewImageVectorIndex(pool, embedder, logger)
}

func provideRAGChunkRepository(cfg *config.Config, logger *slog.Logger) rag.ChunkRepository {
	pool := ragPostgresPool(cfg, logger)
	return ragrepo.NewPostgresChunkRepository(pool, logger)
}

func provideRAGFileRepository(cfg *config.Config, logger *slog.Logger) rag.FileRepository {
	pool := ragPostgresPool(cfg, logger)
	return ragrepo.NewPostgresFileRepository(pool)
}

func provideRAGObjectStorage(cfg *config.Config, logger *slog.Logger) rag.ObjectStorage {
	endpoint := strings.TrimSpace(cfg.RAG.Storage.Endpoint)
	accessKey := strings.TrimSpace(cfg.RAG.Storage.AccessKey)
	secretKey := strings.TrimSpace(cfg.RAG.Storage.SecretKey)
	bucket := strings.TrimSpace(cfg.RAG.Storage.Bucket)
	region := strings.TrimSpace(cfg.RAG.Storage.Region)

	r2, err := ragstorage.NewR2Storage(endpoint, accessKey, secretKey, bucket, region, logger)
	if err != nil {
		logger.Error("failed to initialize rag object storage", "error", err)
		return nil
	}
	logger.Info("rag r2 storage enabled", "endpoint", endpoint, "bucket", bucket)
	return r2
}

func provideRAGProcessor(cfg *config.Config, logger *slog.Logger) *rag.DocumentProcessor {
	chunker := ragchunker.New(cfg.RAG.ChunkMaxTokens, cfg.RAG.ChunkOverlap)
	ocr := ragocr.New(cfg.RAG.TesseractCmd)
	resizer := ragimaging.New()
	extractor := ragpdfextract.New(logger)
	return rag.NewDocumentProcessor(chunker, ocr, resizer, extractor, rag.ProcessorConfig{
		MaxImageDimension: cfg.RAG.MaxImageDimension,
	}, logger)
}

func provideIngestionService(storage rag.ObjectStorage, files rag.FileRepository, chunks rag.ChunkRepository, textIndex rag.TextIndex, imageIndex rag.ImageIndex, processor *rag.DocumentProcessor, logger *slog.Logger) *rag.IngestionService {
	return rag.NewIngestionService(storage, files, chunks, textIndex, imageIndex, processor, logger)
}

func provideRetrievalService(textIndex rag.TextIndex, imageIndex rag.ImageIndex, chunks rag.ChunkRepository, files rag.FileRepository, logger *slog.Logger) *rag.RetrievalService {
	return rag.NewRetrievalService(textIndex, imageIndex, chunks, files, logger)
}

func provideAgentTransport(client *chatgpt.Client) domainagent.ChatTransport {
	return infraagent.NewChatGPTTransport(client)
}

func provideAgentRepairer() domainagent.JSONRepairer {
	return infraagent.NewJSONRepair()
}

func provideAgentValidator() domainagent.SchemaValidator {
	return infraagent.NewSchemaValidator(infraagent.DefaultSchemas())
}

func provideAgentRunner(transport domainagent.ChatTransport, repairer domainagent.JSONRepairer, validator domainagent.SchemaValidator, logger *slog.Logger) *domainagent.Runner {
	return domainagent.NewRunner(transport, repairer, validator, logger)
}

func provideFormParserAgent(runner *domainagent.Runner) formpipeline.ParserAgent {
	return infraagent.NewFormParserAgent(runner, infraagent.DefaultRetryConfig())
}

func provideFormSolverAgent(runner *domainagent.Runner) formpipeline.SolverAgent {
	return infraagent.NewFormSolverAgent(runner, infraagent.DefaultRetryConfig())
}

func provideFormActionAgent(runner *domainagent.Runner) formpipeline.ActionAgent {
	return infraagent.NewFormActionAgent(runner, infraagent.DefaultRetryConfig())
}

func provideFormRetriever(svc *rag.RetrievalService, cfg *config.Config) formpipeline.Retriever {
	return formpipeline.RetrieverFromRAG{Service: svc, TopK: cfg.Form.RAGTopK}
}

var (
	formPoolOnce sync.Once
	formPool     *pgxpool.Pool
)

func formPostgresPool(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	formPoolOnce.Do(func() {
		dsn := strings.TrimSpace(cfg.Form.Postgres.DSN)
		if dsn == "" {
			logger.Info("form postgres dsn not set, falling back to rag pool")
			formPool = ragPostgresPool(cfg, logger)
			return
		}
		poolConfig, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			logger.Error("invalid form postgres dsn", "error", err)
			return
		}
		if cfg.Form.Postgres.MaxConns > 0 {
			poolConfig.MaxConns = cfg.Form.Postgres.MaxConns
		}
		if cfg.Form.Postgres.MinConns > 0 {
			poolConfig.MinConns = cfg.Form.Postgres.MinConns
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			logger.Error("failed to initialize form postgres pool", "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("form postgres ping failed", "error", err)
			pool.Close()
			return
		}
		logger.Info("form postgres pool enabled")
		formPool = pool
	})
	return formPool
}

func provideFormRequestRepository(cfg *config.Config, logger *slog.Logger) formpipeline.RequestRepository {
	pool := formPostgresPool(cfg, logger)
	return formrepo.NewPostgresRequestRepository(pool)
}

func provideFormProgressRepository(cfg *config.Config, logger *slog.Logger) formpipeline.ProgressRepository {
	pool := formPostgresPool(cfg, logger)
	return formrepo.NewPostgresProgressRepository(pool)
}

func provideFormActionRepository(cfg *config.Config, logger *slog.Logger) formpipeline.ActionRepository {
	pool := formPostgresPool(cfg, logger)
	return formrepo.NewPostgresActionRepository(pool)
}

func provideFormCancelSignal(cfg *config.Config, logger *slog.Logger) formpipeline.CancelSignal {
	if !cfg.Form.Redis.Enabled {
		logger.Info("form cancel signal disabled, single-instance cooperative cancellation only")
		return nil
	}
	opt, err := buildValkeyOptions(cfg.Form.Redis.Addr)
	if err != nil {
		logger.Error("invalid form valkey configuration, cross-instance cancel disabled", "error", err)
		return nil
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create form valkey client, cross-instance cancel disabled", "error", err)
		return nil
	}
	logger.Info("form cross-instance cancel flag enabled", "addr", cfg.Form.Redis.Addr)
	return formregistry.NewCancelFlag(client)
}

func provideFormManager(requests formpipeline.RequestRepository, progress formpipeline.ProgressRepository, cancel formpipeline.CancelSignal, logger *slog.Logger) *formpipeline.Manager {
	return formpipeline.NewManager(requests, progress, cancel, logger)
}

func provideOrchestratorConfig(cfg *config.Config) formpipeline.OrchestratorConfig {
	return formpipeline.OrchestratorConfig{RAGTopK: cfg.Form.RAGTopK}
}

func provideOrchestrator(
	cfg formpipeline.OrchestratorConfig,
	parser formpipeline.ParserAgent,
	solver formpipeline.SolverAgent,
	actioner formpipeline.ActionAgent,
	retriever formpipeline.Retriever,
	requests formpipeline.RequestRepository,
	progress formpipeline.ProgressRepository,
	actions formpipeline.ActionRepository,
	cancel formpipeline.CancelSignal,
	logger *slog.Logger,
) *formpipeline.Orchestrator {
	return formpipeline.NewOrchestrator(cfg, parser, solver, actioner, retriever, requests, progress, actions, cancel, logger)
}

func registerPgVector(poolConfig *pgxpool.Config, logger *slog.Logger) {
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		var oid uint32
		if err := conn.QueryRow(ctx, "SELECT 'vector'::regtype::oid").Scan(&oid); err != nil {
			logger.Error("failed to lookup pgvector oid", "error", err)
			return err
		}
		conn.TypeMap().RegisterType(&pgtype.Type{
			Name:  "vector",
			OID:   oid,
			Codec: pgtype.TextCodec{},
		})
		return nil
	}
}
