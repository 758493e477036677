package backend

// RouteInfo is the routing summary between two coordinates.
type RouteInfo struct {
	DistanceKm          float64 `json:"distanceInKm"`
	DurationMinutes     float64 `json:"durationInMinutes"`
	TrafficDelayMinutes float64 `json:"trafficDelayInMinutes"`
}

// Address is a resolved human-readable address.
type Address struct {
	Label string `json:"label"`
	City  string `json:"city,omitempty"`
}

// UnknownAddress is returned when reverse geocoding yields no usable
// components.
const UnknownAddress = "Unknown address"

// Place is a single location search result.
type Place struct {
	ID      string  `json:"id"`
	Name    string  `json:"name,omitempty"`
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Delivery is a delivery record as returned by the backend.
type Delivery struct {
	ID             int64    `json:"id"`
	SenderID       *int64   `json:"sender_id"`
	ReceiverID     *int64   `json:"receiver_id"`
	DriverID       *int64   `json:"driver_id"`
	PickupAddress  string   `json:"pickup_address"`
	DropoffAddress string   `json:"dropoff_address"`
	PickupLat      *float64 `json:"pickup_lat"`
	PickupLong     *float64 `json:"pickup_long"`
	DropoffLat     *float64 `json:"dropoff_lat"`
	DropoffLong    *float64 `json:"dropoff_long"`
	Status         string   `json:"status"`
	DeliveryFee    float64  `json:"delivery_fee"`
	Tip            float64  `json:"tip"`
	CreatedAt      string   `json:"created_at,omitempty"`
}

// Delivery statuses used by the backend.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusInTransit = "in_transit"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// reverseGeocodeResponse mirrors the geocoder's nested shape. Components are
// optional and consulted in preference order.
type reverseGeocodeResponse struct {
	POI *struct {
		Name string `json:"name"`
	} `json:"poi"`
	Address *struct {
		StreetName      string `json:"streetName"`
		FreeformAddress string `json:"freeformAddress"`
		Municipality    string `json:"municipality"`
	} `json:"address"`
	FreeformAddress string `json:"freeformAddress"`
}

type searchResponse struct {
	Results []struct {
		ID       string `json:"id"`
		Position struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"position"`
		POI *struct {
			Name string `json:"name"`
		} `json:"poi"`
		Address *struct {
			FreeformAddress string `json:"freeformAddress"`
		} `json:"address"`
	} `json:"results"`
}
