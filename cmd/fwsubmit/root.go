package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ericfisherdev/fwchecks/internal/adapter/driven/artifact"
	"github.com/ericfisherdev/fwchecks/internal/adapter/driven/ciservice"
	"github.com/ericfisherdev/fwchecks/internal/application"
	"github.com/ericfisherdev/fwchecks/internal/domain/model"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

const envPrefix = "FW"

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "fwsubmit",
		Short: "Upload firmware binaries and create a CI job request",
		Long: `Upload firmware binaries to the CI service and request a test job for a commit.

Binaries are given as name=location pairs. A location is a local path or
doublestar glob matching exactly one file, an http(s) URL, or s3://bucket/key.

Every flag can also be set through the environment as FW_<FLAG>, for example
FW_API_URL or FW_WORKFLOW. FW_BINARIES holds a comma separated list of pairs.`,
		Example: `  fwsubmit --workflow W1 --commit 9f2c1e7 --binary boot=build/**/boot-*.bin
  FW_BINARIES="boot=s3://firmware/boot.bin" fwsubmit --manifest submit.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSubmit(cmd, v)
		},
	}

	f := cmd.Flags()
	f.String("api-url", "", "CI service API base URL")
	f.String("token", "", "CI service API token")
	f.String("email", "", "login email, used when no token is given")
	f.String("password", "", "login password, used when no token is given")
	f.String("workflow", "", "workflow ID to run")
	f.String("commit", "", "commit hash under test")
	f.String("change", "", "review change number")
	f.String("patchset", "", "review patchset number")
	f.String("project", "", "review project")
	f.String("branch", "", "target branch")
	f.String("comment", "", "free-form comment on the job request")
	f.StringArray("binary", nil, "binary as name=location (repeatable)")
	f.String("manifest", "", "YAML submission manifest")
	f.String("s3-region", "", "AWS region for s3:// binaries")
	f.String("s3-endpoint", "", "S3-compatible endpoint for s3:// binaries")
	f.String("s3-profile", "", "AWS profile for s3:// binaries")
	f.Bool("s3-path-style", false, "use path-style S3 addressing")
	f.Duration("timeout", 10*time.Minute, "overall submission timeout")
	f.BoolP("verbose", "v", false, "enable debug logging")

	cobra.CheckErr(v.BindPFlags(f))
	cobra.CheckErr(v.BindEnv("binaries", envPrefix+"_BINARIES"))

	return cmd
}

func runSubmit(cmd *cobra.Command, v *viper.Viper) error {
	level := slog.LevelInfo
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	flagPairs, err := cmd.Flags().GetStringArray("binary")
	if err != nil {
		return err
	}
	sub, err := buildSubmission(v, flagPairs)
	if err != nil {
		return err
	}

	apiURL := v.GetString("api-url")
	if apiURL == "" {
		return fmt.Errorf("--api-url or %s_API_URL is required", envPrefix)
	}

	ctx := cmd.Context()
	if timeout := v.GetDuration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	submitter, err := ciservice.NewClient(apiURL, "")
	if err != nil {
		return err
	}

	sources := []driven.BinarySource{artifact.NewHTTPSource(nil), artifact.NewLocalSource()}
	if usesS3(sub.Binaries) {
		s3src, err := artifact.NewS3Source(ctx, artifact.S3Config{
			Region:         v.GetString("s3-region"),
			Endpoint:       v.GetString("s3-endpoint"),
			Profile:        v.GetString("s3-profile"),
			ForcePathStyle: v.GetBool("s3-path-style"),
		})
		if err != nil {
			return err
		}
		sources = append([]driven.BinarySource{s3src}, sources...)
	}

	svc := application.NewSubmitService(submitter, sources...)
	result, err := svc.Submit(ctx, sub, application.Auth{
		Token:    v.GetString("token"),
		Email:    v.GetString("email"),
		Password: v.GetString("password"),
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), result.JobRequestID)
	return err
}

// buildSubmission merges the manifest, flags and environment. Flags and
// environment win over manifest fields.
func buildSubmission(v *viper.Viper, flagPairs []string) (model.Submission, error) {
	m := &manifest{}
	if path := v.GetString("manifest"); path != "" {
		loaded, err := loadManifest(path)
		if err != nil {
			return model.Submission{}, err
		}
		m = loaded
	}

	pairs := flagPairs
	if len(pairs) == 0 {
		pairs = splitBinaryList(v.GetString("binaries"))
	}
	flagBinaries, err := parseBinarySpecs(pairs)
	if err != nil {
		return model.Submission{}, err
	}

	return model.Submission{
		WorkflowID:   firstNonEmpty(v.GetString("workflow"), m.Workflow),
		CommitHash:   firstNonEmpty(v.GetString("commit"), m.Commit),
		Binaries:     append(m.manifestBinaries(), flagBinaries...),
		ChangeNumber: firstNonEmpty(v.GetString("change"), m.Change),
		Patchset:     firstNonEmpty(v.GetString("patchset"), m.Patchset),
		Project:      firstNonEmpty(v.GetString("project"), m.Project),
		Branch:       firstNonEmpty(v.GetString("branch"), m.Branch),
		Comment:      firstNonEmpty(v.GetString("comment"), m.Comment),
	}, nil
}

func usesS3(specs []model.BinarySpec) bool {
	for _, s := range specs {
		if strings.HasPrefix(s.Location, "s3://") {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
