// Package config holds the persistent description of a vehicle/controller
// pair: radio interfaces, local radio links, video profiles and process
// priorities. It is read by every other package in this module and is
// rarely written at runtime, mirroring the teacher's save_audio_config_p /
// g_pCurrentModel read-mostly globals but packaged as an explicit value
// instead of process-wide state.
package config

import (
	"os"

	"github.com/rs/xid"
	"gopkg.in/yaml.v3"
)

// DriverFamily identifies the chipset/transport family of a radio interface.
type DriverFamily int

const (
	DriverAtherosRalink DriverFamily = iota
	DriverRTL88xx
	DriverSerialSiK
	DriverOther
)

// UplinkRatePolicy selects how the uplink (non-video) data rate is chosen
// on adapters that are not Atheros/Ralink (those always use the configured
// rate verbatim).
type UplinkRatePolicy int

const (
	UplinkRateFixed UplinkRatePolicy = iota
	UplinkRateSameAsAdaptiveVideo
	UplinkRateLowest
)

// RadioInterfaceParams is the persisted configuration for one physical
// adapter. Runtime-only fields (handles, broken flag, counters) live in
// the radiostats/rxdriver packages, not here — this struct is the
// read-mostly part of spec.md §3's "Radio interface".
type RadioInterfaceParams struct {
	Index      int          `yaml:"index"`
	Name       string       `yaml:"name"`
	MAC        string       `yaml:"mac"`
	USBPath    string       `yaml:"usb_path"`
	Driver     DriverFamily `yaml:"driver"`
	Disabled   bool         `yaml:"disabled"`
	MayTX      bool         `yaml:"may_tx"`
	MayUseData bool         `yaml:"may_use_for_data"`
	RelayOnly  bool         `yaml:"relay_only"`
	TXCapable  bool         `yaml:"tx_capable"`

	// PreferredTXIndex, when non-zero, is the controller-settings hint
	// consulted by the TX selector (C5) before falling back to quality.
	PreferredTXIndex int `yaml:"preferred_tx_index"`

	CurrentFrequencyMhz int `yaml:"current_frequency_mhz"`
}

// LocalRadioLinkParams is the persisted configuration for one local radio
// link (spec.md §3, "Local radio link").
type LocalRadioLinkParams struct {
	ID int `yaml:"id"`

	CanTX      bool `yaml:"can_tx"`
	CanRX      bool `yaml:"can_rx"`
	CanRelay   bool `yaml:"can_relay"`
	Disabled   bool `yaml:"disabled"`
	DownlinkOnly bool `yaml:"downlink_only"`

	DataRateVideoBPS int `yaml:"data_rate_video_bps"`
	DataRateDataBPS  int `yaml:"data_rate_data_bps"`

	UplinkRatePolicy UplinkRatePolicy `yaml:"uplink_rate_policy"`

	// SiKPacketSize is non-zero when this link is backed by a serial
	// SiK radio; it is the inner packet fragment size used when
	// estimating framing overhead in the TX engine (C6).
	SiKPacketSize int `yaml:"sik_packet_size"`

	// InterfaceIndexes lists the radio interfaces assigned to this
	// link. Invariant (spec.md §3): every enabled interface belongs to
	// exactly one local radio link.
	InterfaceIndexes []int `yaml:"interface_indexes"`
}

// VideoLinkProfile is one selectable video quality/robustness point.
type VideoLinkProfile struct {
	Name  string `yaml:"name"`
	Index int    `yaml:"index"`

	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`

	FECDataBlocks   int `yaml:"fec_data_blocks"`
	FECParityBlocks int `yaml:"fec_parity_blocks"`

	InitialKeyframeMs int `yaml:"initial_keyframe_ms"`

	BitrateFixedBPS int `yaml:"bitrate_fixed_bps"`
	IPQuantizationDelta int `yaml:"ip_quantization_delta"`

	RetransmitWindowPackets int `yaml:"retransmit_window_packets"`

	AdaptiveEnabled bool `yaml:"adaptive_enabled"`

	// RadioDataRateBPS is used verbatim when this profile equals the
	// currently-active adaptive profile (see adaptive.Controller).
	RadioDataRateBPS int `yaml:"radio_data_rate_bps"`
}

const (
	VideoProfileHQ = 0
	VideoProfileMQ = 1
	VideoProfileLQ = 2
)

// VideoParams groups the profile selection state for the active model.
type VideoParams struct {
	UserSelectedVideoLinkProfile int `yaml:"user_selected_video_link_profile"`
}

// CameraKind distinguishes which out-of-core capture collaborator is
// active, mirroring Model.isActiveCameraCSICompatible/Veye/OpenIPC in the
// original source.
type CameraKind int

const (
	CameraNone CameraKind = iota
	CameraCSI
	CameraVeye
	CameraOpenIPC
)

// ProcessPriorities carries the scheduling-priority knobs read by the RX
// worker (spec.md §4.4 step 4, "apply a pending thread-priority change").
type ProcessPriorities struct {
	RxWorkerRealtime bool `yaml:"rx_worker_realtime"`
	RxWorkerNiceness int  `yaml:"rx_worker_niceness"`
}

// DeveloperFlags are rarely-touched debug toggles, carried over from the
// original's g_pCurrentModel->bDeveloperMode-style switches.
type DeveloperFlags struct {
	LogAllPackets bool `yaml:"log_all_packets"`
}

// Model is the persisted description of the vehicle a controller talks
// to. Loaded at startup, versioned, migrated by a separate collaborator
// (not part of this module), read by every core component.
type Model struct {
	Version int `yaml:"version"`

	VehicleID uint32 `yaml:"vehicle_id"`

	RadioInterfaces []RadioInterfaceParams `yaml:"radio_interfaces"`
	RadioLinks      []LocalRadioLinkParams `yaml:"radio_links"`

	VideoLinkProfiles []VideoLinkProfile `yaml:"video_link_profiles"`
	VideoParams       VideoParams        `yaml:"video_params"`

	ActiveCamera CameraKind `yaml:"active_camera"`

	Priorities ProcessPriorities `yaml:"priorities"`
	Developer  DeveloperFlags    `yaml:"developer"`

	// ScrambleKey, when non-empty, is the per-peer secret used by the
	// codec's reversible XOR scrambling (spec.md §4.1).
	ScrambleKey []byte `yaml:"scramble_key"`
}

// ControllerCardFlags is the controller-only per-interface flag set
// layered on top of RadioInterfaceParams (spec.md §3, "Configuration
// (Model)": "a parallel controller-settings and per-interface card
// flags").
type ControllerCardFlags struct {
	InterfaceIndex   int  `yaml:"interface_index"`
	PreferredForTX   bool `yaml:"preferred_for_tx"`
	DisabledForTX    bool `yaml:"disabled_for_tx"`
}

// ControllerSettings is the controller-side parallel configuration.
type ControllerSettings struct {
	CardFlags []ControllerCardFlags `yaml:"card_flags"`

	// NegotiatingRadioLinks mirrors g_bNegociatingRadioLinks: while
	// true, the TX selector (C5) forces the lowest data rate.
	NegotiatingRadioLinks bool `yaml:"-"`

	// LinkLost mirrors the controller's own "link lost" flag which
	// also clamps the TX selector to the lowest rate.
	LinkLost bool `yaml:"-"`
}

// NewRunID returns a process-local trace id stamped onto log lines and the CSV
// packet log for a given run, generated fresh at startup (not persisted).
func NewRunID() string { return xid.New().String() }

// Load reads a Model from a YAML file at path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the Model back out as YAML. Runtime code almost never
// calls this; it exists for the admin paths spec.md §4.9 alludes to.
func (m *Model) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LinkByID returns the local radio link with the given id, or nil.
func (m *Model) LinkByID(id int) *LocalRadioLinkParams {
	for i := range m.RadioLinks {
		if m.RadioLinks[i].ID == id {
			return &m.RadioLinks[i]
		}
	}
	return nil
}

// InterfaceByIndex returns the radio interface with the given stable
// index, or nil.
func (m *Model) InterfaceByIndex(idx int) *RadioInterfaceParams {
	for i := range m.RadioInterfaces {
		if m.RadioInterfaces[i].Index == idx {
			return &m.RadioInterfaces[i]
		}
	}
	return nil
}

// InitialKeyframeMs returns the initial keyframe interval in ms for the
// given video profile index, matching Model::getInitialKeyframeIntervalMs.
func (m *Model) InitialKeyframeMs(profile int) int {
	for i := range m.VideoLinkProfiles {
		if m.VideoLinkProfiles[i].Index == profile {
			return m.VideoLinkProfiles[i].InitialKeyframeMs
		}
	}
	return 0
}

// ProfileByIndex returns the video link profile with the given index.
func (m *Model) ProfileByIndex(profile int) *VideoLinkProfile {
	for i := range m.VideoLinkProfiles {
		if m.VideoLinkProfiles[i].Index == profile {
			return &m.VideoLinkProfiles[i]
		}
	}
	return nil
}

func (m *Model) HasCamera() bool { return m.ActiveCamera != CameraNone }

func (m *Model) IsActiveCameraCSICompatible() bool {
	return m.ActiveCamera == CameraCSI || m.ActiveCamera == CameraVeye
}

func (m *Model) IsActiveCameraOpenIPC() bool { return m.ActiveCamera == CameraOpenIPC }
