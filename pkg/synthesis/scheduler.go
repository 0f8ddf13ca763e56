package synthesis

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/josetascon/cinemri-simulation/internal/models"
	"github.com/josetascon/cinemri-simulation/pkg/frames"
	"github.com/josetascon/cinemri-simulation/pkg/resample"
	"github.com/josetascon/cinemri-simulation/pkg/transform"
)

// FrameCallback is invoked once per produced frame with its plan and the
// fields composed for it. Calls are serialized.
type FrameCallback func(plan Plan, fields []transform.FieldRef)

// Params holds everything a synthesis run needs.
type Params struct {
	// Timeline is the breathing model and time axis.
	Timeline Timeline

	// View and Slice select the 2D plane written for each frame.
	View  resample.View
	Slice int

	// Reference is the volume warped for the primary channel.
	Reference *models.Volume

	// Auxiliary volumes (segmentation masks) are warped by the same
	// transform; Writer.Channels()[i+1] receives Auxiliary[i].
	Auxiliary []*models.Volume

	// Fields lists the pre-computed phase-to-phase deformations.
	Fields *transform.FieldTable

	// Loader reads deformation fields. Not used in debug mode.
	Loader transform.FieldLoader

	// ImageInterpolator and MaskInterpolator sample the reference and
	// auxiliary volumes when warping.
	ImageInterpolator resample.Interpolator
	MaskInterpolator  resample.Interpolator

	// Writer persists the frames.
	Writer *frames.Writer

	// Amplitudes draws the amplitude of every new cycle in random mode.
	Amplitudes AmplitudeSource

	// Workers is the number of frames produced concurrently.
	Workers int

	// Overwrite regenerates every frame instead of resuming.
	Overwrite bool

	// Debug computes and logs every frame without resampling or writing.
	Debug bool

	// Logger receives progress logging; slog.Default() when nil.
	Logger *slog.Logger

	// OnFrame, when set, is called for every produced frame.
	OnFrame FrameCallback
}

// Summary reports what a run did.
type Summary struct {
	// Total is the number of frames of the full sequence.
	Total int
	// Start is the first frame index produced by this run.
	Start int
	// Produced counts frames computed by this run (written unless debug).
	Produced int
	// AlreadyComplete is set when every frame already existed.
	AlreadyComplete bool
}

// Scheduler runs the per-frame synthesis loop.
type Scheduler struct {
	params *Params
	logger *slog.Logger

	composer      *transform.Composer
	imageSampler  *resample.Resampler
	maskSampler   *resample.Resampler
	staticFrames  []*models.Image2D
	callbackMutex sync.Mutex
}

// NewScheduler checks params and prepares the scheduler.
func NewScheduler(params *Params) (*Scheduler, error) {
	if err := params.Timeline.Validate(); err != nil {
		return nil, err
	}
	if params.Reference == nil {
		return nil, errors.New("reference volume is required")
	}
	if params.Fields == nil {
		return nil, errors.New("field table is required")
	}
	if params.Writer == nil {
		return nil, errors.New("frame writer is required")
	}
	if got, want := len(params.Writer.Channels()), 1+len(params.Auxiliary); got != want {
		return nil, fmt.Errorf("writer has %d channels, need %d", got, want)
	}
	if !params.Debug && params.Loader == nil {
		return nil, errors.New("field loader is required")
	}
	if params.Timeline.RandomAmplitude && params.Amplitudes == nil {
		return nil, errors.New("amplitude source is required in random mode")
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		params:       params,
		logger:       logger,
		composer:     transform.NewComposer(params.Loader),
		imageSampler: resample.NewResampler(params.ImageInterpolator),
		maskSampler:  resample.NewResampler(params.MaskInterpolator),
	}, nil
}

// Run produces every frame not yet present in the primary channel, or all
// of them when Overwrite is set.
func (s *Scheduler) Run() (Summary, error) {
	p := s.params
	summary := Summary{Total: p.Timeline.FrameCount()}

	channels := p.Writer.Channels()
	progress, err := channels[0].Scan()
	if err != nil {
		return summary, err
	}

	if progress.Count > 0 && !p.Overwrite {
		if progress.Count >= summary.Total {
			s.logger.Info("existing frames are complete, use overwrite to regenerate",
				"dir", channels[0].Dir, "frames", progress.Count)
			summary.AlreadyComplete = true
			summary.Start = summary.Total
			return summary, nil
		}
		summary.Start = progress.Next
		s.logger.Info("resuming from existing frames",
			"dir", channels[0].Dir, "existing", progress.Count, "next", progress.Next)
	}

	if !p.Debug {
		if err := p.Writer.Prepare(); err != nil {
			return summary, err
		}
		if err := s.prepareStaticFrames(); err != nil {
			return summary, err
		}
	}

	// The amplitude state is a left-to-right chain, so it is computed for the
	// whole sequence before any frame is produced.
	plans, err := p.Timeline.Plans(p.Amplitudes)
	if err != nil {
		return summary, err
	}
	pending := plans[summary.Start:]

	s.logger.Info("synthesizing frames",
		"total", summary.Total, "start", summary.Start, "workers", max(p.Workers, 1), "debug", p.Debug)

	var produced atomic.Int64
	render := func(plan Plan) error {
		if err := s.renderFrame(plan); err != nil {
			return err
		}
		produced.Add(1)
		return nil
	}

	if p.Workers <= 1 {
		for _, plan := range pending {
			if err := render(plan); err != nil {
				summary.Produced = int(produced.Load())
				return summary, err
			}
		}
	} else if err := runParallel(pending, p.Workers, render); err != nil {
		summary.Produced = int(produced.Load())
		return summary, err
	}

	summary.Produced = int(produced.Load())
	s.logger.Info("synthesis finished", "produced", summary.Produced, "total", summary.Total)
	return summary, nil
}

// runParallel fans plans out to workers and returns the first error. No new
// frame is started once an error has been seen.
func runParallel(plans []Plan, workers int, render func(Plan) error) error {
	jobs := make(chan Plan)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for plan := range jobs {
				if err := render(plan); err != nil {
					errs <- err
					return
				}
			}
		}()
	}

	var firstErr error
feed:
	for _, plan := range plans {
		select {
		case jobs <- plan:
		case firstErr = <-errs:
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	if firstErr != nil {
		return firstErr
	}
	return <-errs
}

// prepareStaticFrames slices the unwarped volumes used by identity frames
func (s *Scheduler) prepareStaticFrames() error {
	p := s.params
	volumes := append([]*models.Volume{p.Reference}, p.Auxiliary...)
	s.staticFrames = make([]*models.Image2D, len(volumes))
	for i, vol := range volumes {
		img, err := resample.ExtractSlice(vol, p.Slice, p.View)
		if err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
		s.staticFrames[i] = img
	}
	return nil
}

func (s *Scheduler) renderFrame(plan Plan) error {
	p := s.params

	refs, err := transform.Resolve(plan.Path, p.Fields)
	if err != nil {
		return fmt.Errorf("frame %d: %w", plan.Index, err)
	}

	if plan.NewCycle {
		s.logger.Info("new breathing cycle", "frame", plan.Index, "t", plan.Time, "amplitude", plan.Amplitude)
	}
	s.logger.Debug("frame",
		"index", plan.Index,
		"t", plan.Time,
		"cycle", plan.Cycle,
		"floor", plan.FloorPhase,
		"ceil", plan.CeilPhase,
		"residual", plan.Residual,
		"proportion", plan.Proportion,
		"amplitude", plan.Amplitude,
		"path", fmt.Sprint(plan.Path),
		"fields", fmt.Sprint(transform.Keys(refs)))

	if p.OnFrame != nil {
		s.callbackMutex.Lock()
		p.OnFrame(plan, refs)
		s.callbackMutex.Unlock()
	}

	if p.Debug {
		return nil
	}

	images := s.staticFrames
	if len(refs) > 0 {
		images, err = s.warpFrame(plan, refs)
		if err != nil {
			return fmt.Errorf("frame %d: %w", plan.Index, err)
		}
	}

	for ch, img := range images {
		if err := p.Writer.Write(ch, plan.Index, img); err != nil {
			return fmt.Errorf("frame %d: %w", plan.Index, err)
		}
	}

	mean, std := frames.Stats(images[0])
	s.logger.Debug("frame written", "index", plan.Index, "mean", mean, "std", std)
	return nil
}

// warpFrame composes the frame transform and warps every channel through it
func (s *Scheduler) warpFrame(plan Plan, refs []transform.FieldRef) ([]*models.Image2D, error) {
	p := s.params

	chain, err := s.composer.Compose(refs, plan.Amplitude, plan.Proportion)
	if err != nil {
		return nil, err
	}

	images := make([]*models.Image2D, 0, 1+len(p.Auxiliary))
	warp := func(vol *models.Volume, r *resample.Resampler) error {
		warped, err := r.Warp(vol, chain)
		if err != nil {
			return err
		}
		img, err := resample.ExtractSlice(warped, p.Slice, p.View)
		if err != nil {
			return err
		}
		images = append(images, img)
		return nil
	}

	if err := warp(p.Reference, s.imageSampler); err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	for i, vol := range p.Auxiliary {
		if err := warp(vol, s.maskSampler); err != nil {
			return nil, fmt.Errorf("auxiliary %d: %w", i, err)
		}
	}
	return images, nil
}
