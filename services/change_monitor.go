package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/realtime"
	"gorm.io/gorm"
)

// Dispatcher receives decoded change events.
type Dispatcher interface {
	Dispatch(realtime.Event)
}

// ChangeMonitor polls db_changes and forwards each row to a Dispatcher.
type ChangeMonitor struct {
	DB        *gorm.DB
	Target    Dispatcher
	Interval  time.Duration
	BatchSize int
	// Processed rows older than Retention are purged. Zero keeps them.
	Retention time.Duration

	log      *logrus.Entry
	stopChan chan struct{}
	done     chan struct{}
	start    sync.Once
	stop     sync.Once
}

func NewChangeMonitor(db *gorm.DB, target Dispatcher, interval time.Duration, log *logrus.Logger) *ChangeMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &ChangeMonitor{
		DB:        db,
		Target:    target,
		Interval:  interval,
		BatchSize: 100,
		Retention: 24 * time.Hour,
		log:       log.WithField("component", "change_monitor"),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (cm *ChangeMonitor) Start() {
	cm.start.Do(func() {
		go func() {
			defer close(cm.done)
			ticker := time.NewTicker(cm.Interval)
			defer ticker.Stop()

			polls := 0
			for {
				select {
				case <-ticker.C:
					if _, err := cm.Poll(context.Background()); err != nil {
						cm.log.WithError(err).Error("polling changes")
					}
					polls++
					if polls%600 == 0 {
						cm.purge()
					}
				case <-cm.stopChan:
					return
				}
			}
		}()
	})
}

// Stop ends the poll loop and waits for it. Safe to call more than once.
func (cm *ChangeMonitor) Stop() {
	cm.stop.Do(func() {
		close(cm.stopChan)
		started := true
		cm.start.Do(func() { started = false })
		if started {
			<-cm.done
		}
	})
}

// Poll forwards one batch of unprocessed changes in id order and marks them
// processed. It returns how many were forwarded.
func (cm *ChangeMonitor) Poll(ctx context.Context) (int, error) {
	var changes []models.DBChange
	if err := cm.DB.WithContext(ctx).
		Where("processed = ?", false).
		Order("id ASC").
		Limit(cm.BatchSize).
		Find(&changes).Error; err != nil {
		return 0, err
	}
	if len(changes) == 0 {
		return 0, nil
	}

	ids := make([]uint, 0, len(changes))
	for _, change := range changes {
		ev, err := decodeChange(change)
		if err != nil {
			cm.log.WithError(err).WithField("change_id", change.ID).Warn("skipping undecodable change")
		} else {
			cm.Target.Dispatch(ev)
		}
		ids = append(ids, change.ID)
	}

	if err := cm.DB.WithContext(ctx).Model(&models.DBChange{}).
		Where("id IN ?", ids).
		Update("processed", true).Error; err != nil {
		return len(changes), err
	}

	cm.log.WithField("count", len(changes)).Debug("changes dispatched")
	return len(changes), nil
}

func (cm *ChangeMonitor) purge() {
	if cm.Retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-cm.Retention)
	res := cm.DB.Where("processed = ? AND changed_at < ?", true, cutoff).Delete(&models.DBChange{})
	if res.Error != nil {
		cm.log.WithError(res.Error).Warn("purging processed changes")
		return
	}
	if res.RowsAffected > 0 {
		cm.log.WithField("count", res.RowsAffected).Info("purged processed changes")
	}
}

func decodeChange(change models.DBChange) (realtime.Event, error) {
	ev := realtime.Event{
		Table:    change.TableName,
		Action:   change.ActionType,
		RecordID: change.RecordID,
		At:       change.ChangedAt,
	}
	if change.Payload == "" {
		return ev, nil
	}
	row := map[string]interface{}{}
	if err := json.Unmarshal([]byte(change.Payload), &row); err != nil {
		return ev, err
	}
	if change.ActionType == models.ActionDelete {
		ev.Old = row
	} else {
		ev.New = row
	}
	return ev, nil
}
