// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud defines the data structures for application configuration,
// loaded from TOML files. It provides a structured way to manage settings
// for the media worker: Google Cloud services, the external media engines,
// the encoding presets of each pipeline pass, clip analysis and the optional
// generative transcription model.
//
// Structs:
//   - Application: Process-wide settings (project, port, scratch and asset directories).
//   - Storage: Upload destination and URL policy for finished artifacts.
//   - Engines: Binary names of the external engines and the termination grace period.
//   - Pipeline: Silence detection thresholds, encoder presets and music defaults.
//   - Analysis: Scene detection and scoring parameters, transcription engine choice.
//   - BigQueryDataSource: Dataset and table for persisted candidate clips.
//   - VertexAiLLMModel: Configuration for a Vertex AI Large Language Model (LLM).
//   - TopicSubscription: Configuration for a single Pub/Sub topic subscription.
//   - Config: The top-level struct that aggregates all other configuration structs.
//
// Functions:
//   - NewConfig: A constructor that initializes a new Config object with defaults.
package cloud

import (
	"time"

	"google.golang.org/genai"
)

// DefaultSafetySettings defines the default content safety thresholds for GenAI models.
// Transcription must return what was said, so no category is blocked.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Application holds general application settings.
type Application struct {
	Name                      string   `toml:"name"`                         // The name of the application.
	GoogleProjectId           string   `toml:"google_project_id"`            // The Google Cloud project ID.
	GoogleLocation            string   `toml:"location"`                     // The Google Cloud location.
	ThreadPoolSize            int      `toml:"thread_pool_size"`             // Concurrent overlay downloads.
	SignerServiceAccountEmail string   `toml:"signer_service_account_email"` // The service account email used for signing GCS URLs.
	Port                      string   `toml:"port"`                         // HTTP listen port.
	ScratchDir                string   `toml:"scratch_dir"`                  // Shared directory for job artifacts.
	AssetsDir                 string   `toml:"assets_dir"`                   // Directory holding preset music under music/.
	FontFiles                 []string `toml:"font_files"`                   // Candidate font files for text overlays, first existing wins.
	LogLevel                  string   `toml:"log_level"`                    // DEBUG, INFO, WARN or ERROR.
	LogFile                   string   `toml:"log_file"`                     // Copy of the log written next to stdout; empty disables it.
	EnableTelemetry           bool     `toml:"enable_telemetry"`             // Export traces and metrics to Google Cloud.
}

// Storage represents the upload destination for finished artifacts.
type Storage struct {
	OutputBucket           string `toml:"output_bucket"`             // Bucket receiving final artifacts; empty disables upload.
	UploadPrefix           string `toml:"upload_prefix"`             // Object name prefix.
	PublicObjects          bool   `toml:"public_objects"`            // Return the public object URL instead of a signed one.
	SignedURLExpiryMinutes int    `toml:"signed_url_expiry_minutes"` // Lifetime of signed URLs.
}

// SignedURLExpiry returns the signed URL lifetime.
func (s Storage) SignedURLExpiry() time.Duration {
	return time.Duration(s.SignedURLExpiryMinutes) * time.Minute
}

// Engines names the external binaries, resolved through PATH when not absolute.
type Engines struct {
	FFmpeg             string `toml:"ffmpeg"`
	FFprobe            string `toml:"ffprobe"`
	Whisper            string `toml:"whisper"`
	SceneDetect        string `toml:"scenedetect"`
	YTDLP              string `toml:"yt_dlp"`
	WhisperModel       string `toml:"whisper_model"`        // Speech model size, e.g. "base".
	GracePeriodSeconds int    `toml:"grace_period_seconds"` // Time a terminated engine has to exit before it is killed.
}

// GracePeriod returns the termination grace period.
func (e Engines) GracePeriod() time.Duration {
	return time.Duration(e.GracePeriodSeconds) * time.Second
}

// Pipeline holds the encoding and detection parameters of the pipeline passes.
type Pipeline struct {
	SilenceNoise              string  `toml:"silence_noise"`               // Silence threshold inside the combined pipeline.
	SilenceDuration           float64 `toml:"silence_duration"`            // Minimum silence length inside the combined pipeline.
	StandaloneSilenceNoise    string  `toml:"standalone_silence_noise"`    // Silence threshold for the standalone operation.
	StandaloneSilenceDuration float64 `toml:"standalone_silence_duration"` // Minimum silence length for the standalone operation.
	IntermediatePreset        string  `toml:"intermediate_preset"`         // Encoder preset of the structural edit.
	FinalPreset               string  `toml:"final_preset"`                // Encoder preset of the effects pass.
	FinalCRF                  int     `toml:"final_crf"`                   // Quality of the effects pass.
	DraftCRF                  int     `toml:"draft_crf"`                   // Quality of the standalone blur reframe.
	MusicVolume               float64 `toml:"music_volume"`                // Default music gain when mixed.
	PresetMusicFile           string  `toml:"preset_music_file"`           // Music used when a request names none.
}

// Analysis holds clip analysis parameters.
type Analysis struct {
	SceneThreshold   float64 `toml:"scene_threshold"`    // Content detector threshold.
	Downscale        int     `toml:"downscale"`          // Frame downscale factor for scene detection.
	MinSceneDuration float64 `toml:"min_scene_duration"` // Scenes shorter than this are discarded.
	TopN             int     `toml:"top_n"`              // Size of the suggestion subset.
	Transcriber      string  `toml:"transcriber"`        // "whisper" or "gemini".
	TranscriberModel string  `toml:"transcriber_model"`  // Agent model key used by the gemini transcriber.
}

// BigQueryDataSource represents the configuration for a BigQuery data source.
type BigQueryDataSource struct {
	DatasetName string `toml:"dataset"`    // The name of the BigQuery dataset.
	ClipTable   string `toml:"clip_table"` // The table receiving candidate clips.
}

// Enabled reports whether candidate clips should be persisted.
func (b BigQueryDataSource) Enabled() bool {
	return b.DatasetName != "" && b.ClipTable != ""
}

// VertexAiLLMModel represents the configuration for a Vertex AI large language model (LLM).
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the Vertex AI LLM.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the LLM.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter for the LLM.
	TopP               float32 `toml:"top_p"`               // The top_p parameter for the LLM.
	TopK               float32 `toml:"top_k"`               // The top_k parameter for the LLM.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of tokens for the LLM output.
	OutputFormat       string  `toml:"output_format"`       // The desired output format for the LLM.
	RateLimit          int     `toml:"rate_limit"`          // The rate limit for the LLM in requests per second.
}

// TopicSubscription represents the configuration for a Pub/Sub topic subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // The timeout for the subscription in seconds.
}

// JobRequestsSubscription is the subscription key whose messages carry
// pipeline requests.
const JobRequestsSubscription = "JobRequests"

// Config represents the overall configuration for the application, loaded from TOML files.
// It acts as the root container for all other configuration structs.
type Config struct {
	Application        Application                  `toml:"application"`
	Storage            Storage                      `toml:"storage"`
	Engines            Engines                      `toml:"engines"`
	Pipeline           Pipeline                     `toml:"pipeline"`
	Analysis           Analysis                     `toml:"analysis"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"` // BigQuery data source configuration.
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"`   // Pub/Sub subscriptions keyed by a logical name (e.g., "JobRequests").
	AgentModels        map[string]VertexAiLLMModel  `toml:"agent_models"`          // Vertex AI models keyed by a logical name (e.g., "transcriber").
}

// NewConfig is a constructor function that creates a new, initialized Config instance.
// The maps are initialized so the loader can populate them, and every value
// the worker cannot run without has a default that the TOML files override.
//
// Outputs:
//   - *Config: A pointer to a new Config struct with defaults applied.
func NewConfig() *Config {
	return &Config{
		Application: Application{
			Name:           "media-pipeline",
			ThreadPoolSize: 4,
			Port:           "8080",
			ScratchDir:     "tmp",
			AssetsDir:      "assets",
			LogLevel:       "INFO",
			LogFile:        "app.log",
			FontFiles: []string{
				"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
				"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
			},
		},
		Storage: Storage{SignedURLExpiryMinutes: 60 * 24},
		Engines: Engines{
			FFmpeg:             "ffmpeg",
			FFprobe:            "ffprobe",
			Whisper:            "whisper",
			SceneDetect:        "scenedetect",
			YTDLP:              "yt-dlp",
			WhisperModel:       "base",
			GracePeriodSeconds: 5,
		},
		Pipeline: Pipeline{
			SilenceNoise:              "-30dB",
			SilenceDuration:           0.5,
			StandaloneSilenceNoise:    "-35dB",
			StandaloneSilenceDuration: 0.75,
			IntermediatePreset:        "ultrafast",
			FinalPreset:               "fast",
			FinalCRF:                  23,
			DraftCRF:                  28,
			MusicVolume:               0.15,
			PresetMusicFile:           "upbeat.mp3",
		},
		Analysis: Analysis{
			SceneThreshold:   27,
			Downscale:        8,
			MinSceneDuration: 2,
			TopN:             15,
			Transcriber:      "whisper",
			TranscriberModel: "transcriber",
		},
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels:        make(map[string]VertexAiLLMModel),
	}
}
