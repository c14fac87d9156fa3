package vzgpu

import (
	"log"
	"os"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/vkscene/vzgpu/wsi"
)

// logLevel is read once from VZGPU_LOG_LEVEL (spec §6 "one log-level
// variable influencing log verbosity"). Recognized values: "debug",
// "info" (default), "warn", "error", "silent".
type logLevel int

const (
	logDebug logLevel = iota
	logInfo
	logWarn
	logError
	logSilent
)

func resolveLogLevel() logLevel {
	switch os.Getenv("VZGPU_LOG_LEVEL") {
	case "debug":
		return logDebug
	case "warn":
		return logWarn
	case "error":
		return logError
	case "silent":
		return logSilent
	default:
		return logInfo
	}
}

// App is the process-wide root: it owns the Vulkan instance and,
// through OpenDevice, any number of Devices. There is no global
// singleton state beyond this value and the log level read once at
// construction — replacing the teacher's package-level BaseCore with
// an explicitly-passed instance (spec §9 "global singleton app").
type App struct {
	name     string
	instance vk.Instance
	debugCB  vk.DebugReportCallback
	level    logLevel
	infoLog  *log.Logger
	warnLog  *log.Logger
	errLog   *log.Logger
	nErrors  int // spec §7: kValidation counted, non-fatal
}

// AppConfig configures instance creation.
type AppConfig struct {
	Name       string
	Validation bool      // enable VK_LAYER_KHRONOS_validation + debug report
	Backend    wsi.Backend // nil for headless/compute-only apps
}

var defaultDeviceExtensions = []string{
	"VK_KHR_swapchain",
}

var defaultValidationLayers = []string{
	"VK_LAYER_KHRONOS_validation",
}

// NewApp creates a Vulkan instance. Fatal failures here (missing
// required extensions/layers, vk.CreateInstance failure) are raised
// via orPanic and recovered by the deferred recoverErr, so NewApp
// returns them as err rather than panicking out.
func NewApp(cfg AppConfig) (app *App, err error) {
	defer recoverErr(&err)

	level := resolveLogLevel()
	a := &App{
		name:    cfg.Name,
		level:   level,
		infoLog: log.New(os.Stdout, "vzgpu: info: ", log.LstdFlags),
		warnLog: log.New(os.Stderr, "vzgpu: warn: ", log.LstdFlags),
		errLog:  log.New(os.Stderr, "vzgpu: error: ", log.LstdFlags),
	}

	wantedExt := []string{}
	if cfg.Backend != nil {
		wantedExt = append(wantedExt, cfg.Backend.RequiredInstanceExtensions()...)
	}
	availExt, err := instanceExtensions()
	orPanic(err)
	if missing := checkExisting(availExt, wantedExt); len(missing) > 0 {
		orPanic(newErr(KindInitFailure, "missing required instance extensions: %v", missing))
	}

	var layers []string
	if cfg.Validation {
		availLayers, lerr := validationLayers()
		orPanic(lerr)
		for _, want := range defaultValidationLayers {
			for _, have := range availLayers {
				if want == have {
					layers = append(layers, want)
					break
				}
			}
		}
	}

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
			ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName:   safeString(cfg.Name),
			PEngineName:        safeString("vzgpu"),
		},
		EnabledExtensionCount:   uint32(len(wantedExt)),
		PpEnabledExtensionNames: safeStrings(wantedExt),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
	}, nil, &instance)
	orPanic(newVkError(ret))
	a.instance = instance

	if cfg.Validation {
		a.debugCB = a.installDebugCallback()
	}

	if level <= logInfo {
		a.infoLog.Printf("instance created: %s (validation=%v)", cfg.Name, cfg.Validation)
	}
	return a, nil
}

func (a *App) installDebugCallback() vk.DebugReportCallback {
	var cb vk.DebugReportCallback
	ret := vk.CreateDebugReportCallback(a.instance, &vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit) | vk.DebugReportFlags(vk.DebugReportWarningBit) |
			vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit),
		PfnCallback: a.dbgCallback,
	}, nil, &cb)
	if isVkError(ret) {
		a.warnLog.Printf("failed to install debug report callback: %v", newVkError(ret))
		return vk.NullDebugReportCallback
	}
	return cb
}

// dbgCallback is the vk.DebugReportCallbackFunction passed to the
// validation layer. Errors are counted on nErrors per spec §7
// (kValidation is non-fatal).
func (a *App) dbgCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		a.nErrors++
		a.errLog.Printf("[%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0,
		flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		a.warnLog.Printf("[%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		if a.level <= logDebug {
			a.infoLog.Printf("[%s] %d: %s", pLayerPrefix, messageCode, pMessage)
		}
	}
	return vk.Bool32(vk.False)
}

// ValidationErrorCount returns the running count of kValidation events
// observed through the debug report callback.
func (a *App) ValidationErrorCount() int { return a.nErrors }

func (a *App) Instance() vk.Instance { return a.instance }

// Destroy tears down the instance and any debug callback. Devices must
// be destroyed first.
func (a *App) Destroy() {
	if a.debugCB != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(a.instance, a.debugCB, nil)
	}
	if a.instance != nil {
		vk.DestroyInstance(a.instance, nil)
		a.instance = nil
	}
}
