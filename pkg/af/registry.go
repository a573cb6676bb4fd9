package af

import "sync"

// Name is the fixed algorithm name this package registers under (§6
// "Algorithm identity"). It is the sole means of instantiation: there is no
// other public constructor a pipeline is expected to call directly.
const Name = "rpi.af"

// Controller is the minimal capability set the pipeline's controller
// registry drives every frame: {name, read, initialise, switchMode,
// prepare, process}, per the "Polymorphism over sensors" design note. No
// inheritance hierarchy is needed beyond this one interface.
type Controller interface {
	Name() string
	Read(params ParamSource)
	Initialise()
	SwitchMode(mode CameraMode)
	Prepare(meta Metadata)
	Process(stats Statistics)
}

// AFController extends Controller with the AF-specific control surface of
// §4.8. A pipeline that only knows it holds a Controller (e.g. while
// iterating the registry generically) type-asserts to AFController to reach
// these.
type AFController interface {
	Controller
	SetRange(r Range)
	SetSpeed(s Speed)
	SetMetering(useWindows bool)
	SetWindows(wins []Rectangle)
	SetLensPosition(dioptres float64) (changed bool, hwpos int)
	LensPosition() (dioptres float64, ok bool)
	TriggerScan()
	CancelScan()
	SetMode(mode Mode)
	Mode() Mode
	Pause(p Pause)
}

var (
	registryMu sync.Mutex
	registry   = map[string]func() Controller{}
)

// Register adds a name-keyed factory to the controller registry. Algorithms
// register themselves at package init time; this is the only process-wide
// mutable state in the af package (§3 Lifecycle).
func Register(name string, factory func() Controller) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New constructs a fresh algorithm instance by registered name.
func New(name string) (Controller, bool) {
	registryMu.Lock()
	factory, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}

func init() {
	Register(Name, func() Controller { return NewStateMachine() })
}
