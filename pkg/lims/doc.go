// Package lims implements a provenance-tracked file repository for
// computational lab work: a miniature LIMS that sits between raw shell
// scripting and full workflow engines.
//
// # Overview
//
// A Repository pairs a content store (one immutable blob per managed file,
// named by an opaque identifier) with a transactional SQLite catalog holding
// metadata: aliases, descriptions, tags, checksums, and the link from every
// artifact back to the execution that produced it. The two sides never
// diverge: imports publish bytes first and commit metadata second, with a
// compensating delete if the catalog commit fails, and deletes remove the
// catalog row first so a crash can never leave a row pointing at missing
// content.
//
// # Core Concepts
//
// Artifacts are managed files with stable UUID identity. Aliases are unique
// human-readable names bound to exactly one artifact at a time. Tags are
// free-form labels used for search.
//
// Executions are tracked units of work. Each owns a private working
// directory for its lifetime; files fetched from the repository are recorded
// as inputs, files marked as outputs are imported on commit with this
// execution recorded as producer, and everything else in the directory is
// garbage-collected when the execution ends, committed or not.
//
// # Usage Example
//
//	repo, err := lims.Open("./lab", lims.Options{Create: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer repo.Close()
//
//	err = lims.WithExecution(ctx, repo, "align sample 1", func(ex *lims.Execution) error {
//		ref, err := ex.Use(ctx, "hg19")
//		if err != nil {
//			return err
//		}
//		if _, err := ex.Run(ctx, []string{"aligner", "-r", ref, "-o", "out.bam"}); err != nil {
//			return err
//		}
//		return ex.MarkOutput("out.bam", lims.OutputSpec{
//			Description: "sample 1 alignment",
//			Tags:        []string{"alignment"},
//			Alias:       "sample1.bam",
//		})
//	})
//
// On success the marked output is imported atomically with full provenance;
// on failure nothing is imported, the failure is recorded on the execution,
// and the working directory is cleaned up either way.
//
// # Design Principles
//
//   - No hidden state: every operation takes an explicit *Repository or
//     *Execution; there is no process-wide handle.
//   - Typed identity: artifacts are addressed by ArtifactID or alias through
//     the catalog, never by bare filesystem paths.
//   - All-or-nothing mutations: every failure path leaves the repository as
//     if the operation had never been attempted, except the documented
//     delete residual (an orphaned blob, never a dangling catalog row).
//   - Single-writer: mutations are serialized within the process; readers
//     see only committed state.
package lims
