package supplemental

import (
	"context"
	"fmt"
	"log"
	"time"

	authrepo "famcal-backend/internal/auth/repository"
	caldomain "famcal-backend/internal/calendar/domain"
	calrepo "famcal-backend/internal/calendar/repository"
	"famcal-backend/pkg/geo"
)

// Generator derives the travel/arrival triple for an assigned event: the
// outbound drive, the early-arrival wait, and the drive home. It owns the
// whole supplemental lifecycle; the triple is always replaced as a unit.
type Generator struct {
	eventRepo     calrepo.EventRepository
	supRepo       calrepo.SupplementalRepository
	userRepo      authrepo.UserRepository
	planner       geo.Planner
	defaultBuffer time.Duration
}

func NewGenerator(eventRepo calrepo.EventRepository, supRepo calrepo.SupplementalRepository, userRepo authrepo.UserRepository, planner geo.Planner, defaultBuffer time.Duration) *Generator {
	if defaultBuffer <= 0 {
		defaultBuffer = 15 * time.Minute
	}
	return &Generator{
		eventRepo:     eventRepo,
		supRepo:       supRepo,
		userRepo:      userRepo,
		planner:       planner,
		defaultBuffer: defaultBuffer,
	}
}

// Generate computes and stores the supplemental triple for the event's
// current assignee. Any failure aborts with no side effects on the parent
// event; callers treat that as non-fatal to the assignment itself.
func (g *Generator) Generate(ctx context.Context, event *caldomain.Event) ([]*caldomain.SupplementalEvent, error) {
	if !event.Assigned() {
		return nil, caldomain.ValidationError("event is not assigned")
	}

	owner, err := g.userRepo.FindByID(*event.AssigneeID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, caldomain.ValidationError("assignee does not exist")
	}
	if owner.HomeLat == nil || owner.HomeLng == nil {
		return nil, caldomain.ValidationError("assignee has no home coordinates configured")
	}
	home := geo.Point{Lat: *owner.HomeLat, Lng: *owner.HomeLng}

	dest, err := g.resolveEventLocation(ctx, event)
	if err != nil {
		return nil, err
	}

	buffer := g.defaultBuffer
	if owner.ComfortBufferMinutes > 0 {
		buffer = time.Duration(owner.ComfortBufferMinutes) * time.Minute
	}

	arrival, explicit := ExtractArrivalTime(event.Description, event.StartTime, buffer)
	if explicit {
		log.Printf("[Supplemental] event %s: using explicit arrival time %s", event.ID, arrival.Format(time.RFC3339))
	}

	outDuration, err := g.planner.TravelTime(ctx, geo.TravelQuery{
		Origin:      home,
		Destination: dest,
		ArriveBy:    arrival,
	})
	if err != nil {
		return nil, fmt.Errorf("outbound routing failed: %w", err)
	}

	homeDuration, err := g.planner.TravelTime(ctx, geo.TravelQuery{
		Origin:      dest,
		Destination: home,
		DepartAt:    event.EndTime,
	})
	if err != nil {
		return nil, fmt.Errorf("return routing failed: %w", err)
	}

	triple := composeTriple(event, owner.HomeAddress, home, dest, arrival, outDuration, homeDuration)

	if err := g.supRepo.ReplaceForEvent(event.ID, triple); err != nil {
		return nil, err
	}

	return triple, nil
}

// Delete removes the whole supplemental set for an event.
func (g *Generator) Delete(eventID string) error {
	return g.supRepo.DeleteByEvent(eventID)
}

// resolveEventLocation returns the event's coordinates, geocoding and
// caching them on the event row when absent.
func (g *Generator) resolveEventLocation(ctx context.Context, event *caldomain.Event) (geo.Point, error) {
	if event.Latitude != nil && event.Longitude != nil {
		return geo.Point{Lat: *event.Latitude, Lng: *event.Longitude}, nil
	}

	if event.Location == "" {
		return geo.Point{}, caldomain.ValidationError("event has no resolvable location")
	}

	point, err := g.planner.Geocode(ctx, event.Location)
	if err != nil {
		return geo.Point{}, fmt.Errorf("geocoding failed: %w", err)
	}

	if err := g.eventRepo.UpdateCoordinates(event.ID, point.Lat, point.Lng); err != nil {
		log.Printf("[Supplemental] failed to cache coordinates for event %s: %v", event.ID, err)
	}
	event.Latitude = &point.Lat
	event.Longitude = &point.Lng

	return point, nil
}

// composeTriple builds the three windows around the arrival time. The set
// is always complete; the early-arrival window may be zero-length when the
// arrival time coincides with the event start.
func composeTriple(event *caldomain.Event, homeAddress string, home, dest geo.Point, arrival time.Time, outDuration, homeDuration time.Duration) []*caldomain.SupplementalEvent {
	eventEnd := event.EndTime

	return []*caldomain.SupplementalEvent{
		{
			EventID:       event.ID,
			Kind:          caldomain.SupplementalTravelOut,
			StartTime:     arrival.Add(-outDuration),
			EndTime:       arrival,
			OriginAddress: homeAddress,
			OriginLat:     &home.Lat,
			OriginLng:     &home.Lng,
			DestAddress:   event.Location,
			DestLat:       &dest.Lat,
			DestLng:       &dest.Lng,
			TravelMinutes: int(outDuration.Round(time.Minute) / time.Minute),
		},
		{
			EventID:       event.ID,
			Kind:          caldomain.SupplementalEarlyArrival,
			StartTime:     arrival,
			EndTime:       event.StartTime,
			OriginAddress: event.Location,
			OriginLat:     &dest.Lat,
			OriginLng:     &dest.Lng,
			DestAddress:   event.Location,
			DestLat:       &dest.Lat,
			DestLng:       &dest.Lng,
		},
		{
			EventID:       event.ID,
			Kind:          caldomain.SupplementalTravelHome,
			StartTime:     eventEnd,
			EndTime:       eventEnd.Add(homeDuration),
			OriginAddress: event.Location,
			OriginLat:     &dest.Lat,
			OriginLng:     &dest.Lng,
			DestAddress:   homeAddress,
			DestLat:       &home.Lat,
			DestLng:       &home.Lng,
			TravelMinutes: int(homeDuration.Round(time.Minute) / time.Minute),
		},
	}
}
