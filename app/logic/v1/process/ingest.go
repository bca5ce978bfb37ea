package process

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/corra-ai/corra-ai/app/core"
	"github.com/corra-ai/corra-ai/pkg/safe"
	"github.com/corra-ai/corra-ai/pkg/types"
)

var (
	ingestProcess *IngestProcess
)

func StartIngestProcess(core *core.Core, concurrency int) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	ingestProcess = &IngestProcess{
		concurrency:   concurrency,
		ctx:           ctx,
		core:          core,
		EmbeddingChan: make(chan *EmbeddingRequest, 1000),
		processingMap: make(map[string]struct{}),
	}

	go safe.Run(ingestProcess.Start)
	go safe.Run(func() {
		ingestProcess.Flush()
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ingestProcess.Flush()
			}
		}
	})
	return cancel
}

type IngestProcess struct {
	concurrency   int
	ctx           context.Context
	core          *core.Core
	EmbeddingChan chan *EmbeddingRequest
	mu            sync.Mutex
	processingMap map[string]struct{}
}

func (p *IngestProcess) Start() {
	for range p.concurrency {
		go safe.Run(func() {
			p.ProcessEmbedding()
		})
	}
}

// Flush 把遗留的非终态任务重新投递，进程重启或投递丢失时兜底。
// 重试超限的任务标记失败后不再处理。
func (p *IngestProcess) Flush() {
	ctx, cancel := context.WithTimeout(p.ctx, time.Second*10)
	defer cancel()
	list, err := p.core.Store().IngestTaskStore().ListTasks(ctx, types.GetIngestTaskOptions{
		Unfinished: true,
	}, 1, 20)
	if err != nil && err != sql.ErrNoRows {
		slog.Error("Failed to list unfinished ingest tasks", slog.String("error", err.Error()))
		return
	}

	if len(list) > 0 {
		slog.Info("IngestProcess flush", slog.Int("length", len(list)))
	}

	for _, v := range list {
		if v.RetryTimes >= types.TASK_MAX_RETRY_TIMES {
			if err := p.core.Store().IngestTaskStore().UpdateStatus(ctx, v.TaskID, types.TASK_STATUS_FAILED, "retry times exceeded"); err != nil {
				slog.Error("Failed to mark ingest task failed", slog.String("task_id", v.TaskID), slog.String("error", err.Error()))
			}
			continue
		}
		NewEmbeddingRequest(v)
	}
}

type EmbeddingRequest struct {
	ctx      context.Context
	data     *types.IngestTask
	response chan EmbeddingResponse
}

type EmbeddingResponse struct {
	Err error
}

func NewEmbeddingRequest(data types.IngestTask) chan EmbeddingResponse {
	if ingestProcess == nil || ingestProcess.ctx.Err() != nil {
		slog.Error("Ingest Process not working",
			slog.String("task_id", data.TaskID), slog.String("entry_id", data.EntryID))
		return nil
	}

	resp := make(chan EmbeddingResponse, 1)
	ingestProcess.EmbeddingChan <- &EmbeddingRequest{
		ctx:      context.Background(),
		data:     &data,
		response: resp,
	}
	return resp
}

func (p *IngestProcess) ProcessEmbedding() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case req := <-p.EmbeddingChan:
			if req == nil {
				continue
			}

			p.checkProcess(req.data.TaskID, func() {
				p.processEmbedding(req)
			})
		}
	}
}

// checkProcess Flush 与即时投递可能重复，同一任务同一时刻只允许一个 worker 处理
func (p *IngestProcess) checkProcess(id string, handler func()) {
	p.mu.Lock()
	if _, exist := p.processingMap[id]; exist {
		p.mu.Unlock()
		return
	}
	p.processingMap[id] = struct{}{}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.processingMap, id)
		p.mu.Unlock()
	}()

	handler()
}

func (p *IngestProcess) processEmbedding(req *EmbeddingRequest) {
	logAttrs := []any{
		slog.String("task_id", req.data.TaskID),
		slog.String("entry_id", req.data.EntryID),
		slog.String("component", "IngestProcess.processEmbedding"),
	}

	ctx, cancel := context.WithTimeout(req.ctx, time.Minute*5)
	defer cancel()

	task, err := p.core.Store().IngestTaskStore().GetTask(ctx, req.data.TaskID)
	if err != nil {
		slog.Error("Failed to get ingest task", append(logAttrs, slog.String("error", err.Error()))...)
		return
	}
	if task.Status.Terminal() {
		return
	}

	slog.Info("Receive new embedding request", logAttrs...)

	defer func() {
		if req.response != nil {
			req.response <- EmbeddingResponse{
				Err: err,
			}
			close(req.response)
		}
		if err != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
			defer cancel()
			if serr := p.core.Store().IngestTaskStore().SetRetryTimes(ctx, req.data.TaskID, req.data.RetryTimes+1); serr != nil {
				slog.Error("Failed to set ingest task retry times",
					append(logAttrs, slog.String("error", serr.Error()))...)
			}
			if serr := p.core.Store().IngestTaskStore().UpdateStatus(ctx, req.data.TaskID, types.TASK_STATUS_PENDING, err.Error()); serr != nil {
				slog.Error("Failed to reset ingest task status",
					append(logAttrs, slog.String("error", serr.Error()))...)
			}
		}
	}()

	if err = p.core.Store().IngestTaskStore().UpdateStatus(ctx, req.data.TaskID, types.TASK_STATUS_PROCESSING, ""); err != nil {
		slog.Error("Failed to update ingest task status", append(logAttrs, slog.String("error", err.Error()))...)
		return
	}

	targets, err := p.core.Store().DocumentAdapter().ListEmbeddingTargets(ctx, req.data.EntryID)
	if err != nil {
		slog.Error("Failed to list embedding targets", append(logAttrs, slog.String("error", err.Error()))...)
		return
	}

	if err = p.embedTargets(ctx, targets, logAttrs); err != nil {
		return
	}

	if err = p.core.Store().IngestTaskStore().UpdateStatus(ctx, req.data.TaskID, types.TASK_STATUS_COMPLETED, ""); err != nil {
		slog.Error("Failed to complete ingest task", append(logAttrs, slog.String("error", err.Error()))...)
		return
	}

	// 新块可检索了，作废该范围的块列表缓存
	if cerr := p.core.BlockCache().Invalidate(ctx, req.data.Scope, req.data.ScopeOwnerID); cerr != nil {
		slog.Error("Failed to invalidate block cache", append(logAttrs, slog.String("error", cerr.Error()))...)
	}

	slog.Info("Embedding finished", append(logAttrs, slog.Int("targets", len(targets)))...)
}

// embedTargets 逐个向量化并落库。个别单元失败只记日志，对应块的
// embedding 保持 NULL，等待 lexical 兜底或下次重试；全部失败才算任务失败。
func (p *IngestProcess) embedTargets(ctx context.Context, targets []types.EmbeddingTarget, logAttrs []any) error {
	if len(targets) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, 4)
		mu       sync.Mutex
		failures int
	)

	for _, target := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go safe.Run(func() {
			defer func() {
				<-sem
				wg.Done()
			}()

			timer := p.core.Metrics().EmbeddingTimer("document")
			result, err := p.core.Srv().AI().EmbeddingForDocument(ctx, "", []string{target.Text})
			timer.ObserveDuration()
			if err != nil || len(result.Data) == 0 {
				p.core.Metrics().EmbeddingErrorInc("document")
				slog.Error("Failed to embed target",
					append(logAttrs, slog.String("target_id", target.ID), slog.Any("error", err))...)
				mu.Lock()
				failures++
				mu.Unlock()
				return
			}

			if err = p.core.Store().DocumentAdapter().StoreEmbedding(ctx, target, pgvector.NewVector(result.Data[0])); err != nil {
				slog.Error("Failed to store embedding",
					append(logAttrs, slog.String("target_id", target.ID), slog.String("error", err.Error()))...)
				mu.Lock()
				failures++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	if failures == len(targets) {
		return fmt.Errorf("all %d embedding targets failed", failures)
	}
	return nil
}
