package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Krisp140/sebi/internal/domain"
	"github.com/Krisp140/sebi/internal/gateway"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ImageGenerator узкий интерфейс модели изображений.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, opts gateway.ImageOptions) (string, error)
}

// PanelReadyFunc вызывается для каждой готовой панели строго по возрастанию индекса.
type PanelReadyFunc func(index int, result domain.PanelResult)

// Pipeline генерирует изображения для панелей истории и отдает их по мере готовности.
// Состояние между запусками не сохраняется.
type Pipeline struct {
	images      ImageGenerator
	opts        gateway.ImageOptions
	concurrency int
	logger      *zap.Logger
}

// New создает пайплайн. concurrency <= 1 означает строго последовательный режим.
func New(images ImageGenerator, opts gateway.ImageOptions, concurrency int, logger *zap.Logger) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		images:      images,
		opts:        opts,
		concurrency: concurrency,
		logger:      logger.Named("pipeline"),
	}
}

// Run обрабатывает панели story. При ошибке на панели k возвращает *AbortError,
// панели 0..k-1 к этому моменту уже доставлены, панели после k не доставляются.
func (p *Pipeline) Run(ctx context.Context, story domain.Story, onPanelReady PanelReadyFunc) error {
	if len(story) == 0 {
		return ErrEmptyStory
	}

	log := p.logger.With(zap.Int("panels", len(story)), zap.Int("concurrency", p.concurrency))
	log.Info("Pipeline started")

	var err error
	if p.concurrency == 1 {
		err = p.runSequential(ctx, story, onPanelReady)
	} else {
		err = p.runBounded(ctx, story, onPanelReady)
	}

	var abortErr *AbortError
	if errors.As(err, &abortErr) {
		runsTotal.WithLabelValues("aborted").Inc()
		log.Warn("Pipeline aborted", zap.Int("index", abortErr.Index), zap.Int("delivered", abortErr.Delivered), zap.Error(abortErr.Err))
		return err
	}
	runsTotal.WithLabelValues("completed").Inc()
	log.Info("Pipeline completed")
	return nil
}

func (p *Pipeline) runSequential(ctx context.Context, story domain.Story, onPanelReady PanelReadyFunc) error {
	for i, panel := range story {
		if err := ctx.Err(); err != nil {
			return &AbortError{Index: i, Delivered: i, Err: err}
		}
		imageURL, err := p.generate(ctx, i, panel)
		if err != nil {
			return &AbortError{Index: i, Delivered: i, Err: err}
		}
		onPanelReady(i, domain.PanelResult{Index: i, Panel: panel, ImageURL: imageURL})
	}
	return nil
}

type panelOutcome struct {
	imageURL string
	err      error
}

var errSkipped = errors.New("panel skipped after earlier failure")

// runBounded запускает до p.concurrency генераций одновременно, но доставляет
// результаты строго по порядку индексов. Панели после первой упавшей не стартуют.
func (p *Pipeline) runBounded(ctx context.Context, story domain.Story, onPanelReady PanelReadyFunc) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := len(story)
	outcomes := make([]chan panelOutcome, n)
	for i := range outcomes {
		outcomes[i] = make(chan panelOutcome, 1)
	}

	var firstFailed atomic.Int64
	firstFailed.Store(int64(n))

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i := range story {
			g.Go(func() error {
				if int64(i) > firstFailed.Load() {
					outcomes[i] <- panelOutcome{err: errSkipped}
					return nil
				}
				if err := runCtx.Err(); err != nil {
					outcomes[i] <- panelOutcome{err: err}
					return nil
				}
				imageURL, err := p.generate(runCtx, i, story[i])
				if err != nil {
					for {
						cur := firstFailed.Load()
						if int64(i) >= cur || firstFailed.CompareAndSwap(cur, int64(i)) {
							break
						}
					}
				}
				outcomes[i] <- panelOutcome{imageURL: imageURL, err: err}
				return nil
			})
		}
	}()

	var runErr error
	for i, panel := range story {
		o := <-outcomes[i]
		if o.err != nil {
			runErr = &AbortError{Index: i, Delivered: i, Err: o.err}
			break
		}
		onPanelReady(i, domain.PanelResult{Index: i, Panel: panel, ImageURL: o.imageURL})
	}

	cancel()
	<-launched
	_ = g.Wait()
	return runErr
}

func (p *Pipeline) generate(ctx context.Context, index int, panel domain.PanelDescriptor) (string, error) {
	start := time.Now()
	imageURL, err := p.images.GenerateImage(ctx, panel.Prompt, p.opts)
	panelDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		panelsTotal.WithLabelValues("failed").Inc()
		p.logger.Error("Panel image generation failed", zap.Int("index", index), zap.Error(err))
		return "", err
	}
	panelsTotal.WithLabelValues("generated").Inc()
	p.logger.Debug("Panel image ready", zap.Int("index", index), zap.String("image_url", imageURL))
	return imageURL, nil
}
