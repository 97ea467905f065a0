package config

import (
	"github.com/reelfeed/reelfeed/internal/domain"
	"github.com/reelfeed/reelfeed/internal/filter"
	"github.com/reelfeed/reelfeed/internal/pipeline"
)

// PipelineJobs converts the [[jobs]] entries, merging each job's filter
// override over the global [filter] policy.
func (c *Config) PipelineJobs() []pipeline.Job {
	jobs := make([]pipeline.Job, 0, len(c.Jobs))
	for _, j := range c.Jobs {
		jobs = append(jobs, pipeline.Job{
			Name:        j.Name,
			EntityType:  domain.EntityType(j.EntityType),
			Enabled:     j.IsEnabled(),
			WindowDays:  j.WindowDays,
			MaxPages:    j.MaxPages,
			BatchSize:   j.BatchSize,
			Concurrency: j.Concurrency,
			Policy:      filter.Merge(c.Filter, j.Filter),
		})
	}
	return jobs
}
